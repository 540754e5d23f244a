package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/skycms/skycms/internal/foundation/errors"
	"github.com/skycms/skycms/internal/server/responses"
	"github.com/skycms/skycms/internal/tenant"
	"github.com/skycms/skycms/internal/version"
)

// RuntimeInfo exposes the server runtime state that the monitoring
// endpoints report.
type RuntimeInfo interface {
	StartTime() time.Time
	QueueLength() int
	ActiveJobs() int
}

// MonitoringHandlers contains health and status HTTP handlers.
type MonitoringHandlers struct {
	runtime      RuntimeInfo
	registry     *tenant.Registry
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance.
func NewMonitoringHandlers(runtime RuntimeInfo, registry *tenant.Registry) *MonitoringHandlers {
	return &MonitoringHandlers{
		runtime:      runtime,
		registry:     registry,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck handles the health check endpoint.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}
	if h.runtime != nil {
		health.Uptime = time.Since(h.runtime.StartTime()).Seconds()
		health.ActiveJobs = h.runtime.ActiveJobs()
	}

	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.InternalError("failed to write health response").WithCause(err).Build())
	}
}

// HandleStatus handles the editor status endpoint, summarizing the
// configured tenants and publish queue.
func (h *MonitoringHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := &responses.StatusResponse{
		Status:    "running",
		Version:   version.Version,
		Timestamp: time.Now().UTC(),
		Tenants:   []responses.TenantSummary{},
	}
	if h.runtime != nil {
		status.StartTime = h.runtime.StartTime()
		status.Uptime = time.Since(h.runtime.StartTime()).Seconds()
		status.QueueLength = h.runtime.QueueLength()
		status.ActiveJobs = h.runtime.ActiveJobs()
	}
	if h.registry != nil {
		for _, t := range h.registry.All() {
			summary := responses.TenantSummary{
				ID:           t.ID,
				Name:         t.Name,
				Hostname:     t.Hostname,
				PublisherURL: t.PublisherURL,
				PathPrefix:   t.PathPrefix,
			}
			if t.CDN != nil {
				summary.CDNProvider = string(t.CDN.Provider)
			}
			status.Tenants = append(status.Tenants, summary)
		}
	}

	if err := writeJSONPretty(w, r, http.StatusOK, status); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.InternalError("failed to write status response").WithCause(err).Build())
	}
}
