package metrics

import "time"

// OutcomeLabel enumerates operation results for counters.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for the publish pipeline and the
// HTTP servers. Implementations may forward to Prometheus or do nothing;
// components receive a Recorder by injection and default to NoopRecorder.
type Recorder interface {
	ObservePublishDuration(tenant string, d time.Duration)
	ObserveStageDuration(stage string, d time.Duration)
	IncPublishOutcome(tenant string, outcome OutcomeLabel)
	IncCDNPurge(provider string, success bool)
	ObserveRebuildDuration(tenant string, d time.Duration)
	SetQueueDepth(n int)
	IncJobResult(jobType string, success bool)
	IncContactSubmission(tenant string, accepted bool)
	ObserveHTTPRequest(app, method string, status int, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePublishDuration(string, time.Duration)          {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)            {}
func (NoopRecorder) IncPublishOutcome(string, OutcomeLabel)                {}
func (NoopRecorder) IncCDNPurge(string, bool)                              {}
func (NoopRecorder) ObserveRebuildDuration(string, time.Duration)          {}
func (NoopRecorder) SetQueueDepth(int)                                     {}
func (NoopRecorder) IncJobResult(string, bool)                             {}
func (NoopRecorder) IncContactSubmission(string, bool)                     {}
func (NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}

func boolOutcome(success bool) string {
	if success {
		return string(OutcomeSuccess)
	}
	return string(OutcomeFailed)
}
