package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorderImplementsRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObservePublishDuration("acme", time.Second)
	r.ObserveStageDuration("render", time.Millisecond)
	r.IncPublishOutcome("acme", OutcomeSuccess)
	r.IncCDNPurge("cloudflare", true)
	r.ObserveRebuildDuration("acme", time.Second)
	r.SetQueueDepth(3)
	r.IncJobResult("publish", false)
	r.IncContactSubmission("acme", true)
	r.ObserveHTTPRequest("editor", "GET", 200, time.Millisecond)
}

func TestBoolOutcome(t *testing.T) {
	if got := boolOutcome(true); got != "success" {
		t.Fatalf("boolOutcome(true) = %q", got)
	}
	if got := boolOutcome(false); got != "failed" {
		t.Fatalf("boolOutcome(false) = %q", got)
	}
}
