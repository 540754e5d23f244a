package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/skycms/skycms/internal/events"
	"github.com/skycms/skycms/internal/metrics"
)

// Options configures optional server wiring.
type Options struct {
	// Logger for request logging and server lifecycle messages. Defaults
	// to slog.Default.
	Logger *slog.Logger

	// Recorder feeds request durations into the metrics pipeline.
	Recorder metrics.Recorder

	// Bus fans out editor-side events (layout saves). May be nil.
	Bus *events.Bus

	// MetricsHandler serves the Prometheus scrape endpoint on the
	// metrics port when monitoring is enabled.
	MetricsHandler http.Handler
}
