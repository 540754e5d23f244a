package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	publishDuration *prom.HistogramVec
	stageDuration   *prom.HistogramVec
	publishOutcome  *prom.CounterVec
	cdnPurges       *prom.CounterVec
	rebuildDuration *prom.HistogramVec
	queueDepth      prom.Gauge
	jobResults      *prom.CounterVec
	contactResults  *prom.CounterVec
	httpDuration    *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.publishDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "skycms",
			Name:      "publish_duration_seconds",
			Help:      "Duration of article publish operations end to end",
			Buckets:   prom.DefBuckets,
		}, []string{"tenant"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "skycms",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual publish pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.publishOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "skycms",
			Name:      "publish_outcomes_total",
			Help:      "Publish outcomes by tenant and final status",
		}, []string{"tenant", "outcome"})
		pr.cdnPurges = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "skycms",
			Name:      "cdn_purges_total",
			Help:      "CDN purge attempts by provider and result",
		}, []string{"provider", "result"})
		pr.rebuildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "skycms",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of full site rebuilds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"tenant"})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "skycms",
			Name:      "publish_queue_depth",
			Help:      "Jobs waiting in the publish queue",
		})
		pr.jobResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "skycms",
			Name:      "job_results_total",
			Help:      "Queue job completions by type and result",
		}, []string{"type", "result"})
		pr.contactResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "skycms",
			Name:      "contact_submissions_total",
			Help:      "Contact form submissions by tenant and result",
		}, []string{"tenant", "result"})
		pr.httpDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "skycms",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by app, method and status",
			Buckets:   prom.DefBuckets,
		}, []string{"app", "method", "status"})
		reg.MustRegister(pr.publishDuration, pr.stageDuration, pr.publishOutcome, pr.cdnPurges, pr.rebuildDuration, pr.queueDepth, pr.jobResults, pr.contactResults, pr.httpDuration)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePublishDuration(tenant string, d time.Duration) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.WithLabelValues(tenant).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishOutcome(tenant string, outcome OutcomeLabel) {
	if p == nil || p.publishOutcome == nil {
		return
	}
	p.publishOutcome.WithLabelValues(tenant, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncCDNPurge(provider string, success bool) {
	if p == nil || p.cdnPurges == nil {
		return
	}
	p.cdnPurges.WithLabelValues(provider, boolOutcome(success)).Inc()
}

func (p *PrometheusRecorder) ObserveRebuildDuration(tenant string, d time.Duration) {
	if p == nil || p.rebuildDuration == nil {
		return
	}
	p.rebuildDuration.WithLabelValues(tenant).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func (p *PrometheusRecorder) IncJobResult(jobType string, success bool) {
	if p == nil || p.jobResults == nil {
		return
	}
	p.jobResults.WithLabelValues(jobType, boolOutcome(success)).Inc()
}

func (p *PrometheusRecorder) IncContactSubmission(tenant string, accepted bool) {
	if p == nil || p.contactResults == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	p.contactResults.WithLabelValues(tenant, result).Inc()
}

func (p *PrometheusRecorder) ObserveHTTPRequest(app, method string, status int, d time.Duration) {
	if p == nil || p.httpDuration == nil {
		return
	}
	p.httpDuration.WithLabelValues(app, method, strconv.Itoa(status)).Observe(d.Seconds())
}
