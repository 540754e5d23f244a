package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	var pr Recorder = NewPrometheusRecorder(reg)
	pr.ObservePublishDuration("acme", 150*time.Millisecond)
	pr.ObserveStageDuration("render", 20*time.Millisecond)
	pr.IncPublishOutcome("acme", OutcomeSuccess)
	pr.IncCDNPurge("cloudflare", false)
	pr.ObserveRebuildDuration("acme", 2*time.Second)
	pr.SetQueueDepth(5)
	pr.IncJobResult("publish", true)
	pr.IncContactSubmission("acme", false)
	pr.ObserveHTTPRequest("publisher", "GET", 200, 5*time.Millisecond)

	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"skycms_publish_duration_seconds",
		"skycms_publish_outcomes_total",
		"skycms_cdn_purges_total",
		"skycms_publish_queue_depth",
		"skycms_http_request_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric family %q not registered", want)
		}
	}
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncPublishOutcome("acme", OutcomeFailed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "skycms_publish_outcomes_total") {
		t.Fatalf("scrape output missing publish outcome counter:\n%s", rec.Body.String())
	}
}

func TestNilRecorderMethodsAreSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObservePublishDuration("acme", time.Second)
	pr.IncPublishOutcome("acme", OutcomeSuccess)
	pr.SetQueueDepth(1)
}
