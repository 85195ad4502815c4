package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry owns these metrics. The /metrics endpoint serves it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	dealsMutated    *prometheus.CounterVec
	healthScores    prometheus.Histogram
	webhooks        *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it, so tests can build as many as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealflow_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_recommendations_total",
				Help: "Next-action recommendations served, by source.",
			},
			[]string{"source", "stage"},
		),
		dealsMutated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_deals_mutated_total",
				Help: "Deals written, by operation.",
			},
			[]string{"operation"},
		),
		healthScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dealflow_health_score",
				Help:    "Health scores computed on write.",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_webhooks_total",
				Help: "Automation webhook calls, by event and outcome.",
			},
			[]string{"event", "status"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealflow_events_published_total",
				Help: "Deal events published, by event and outcome.",
			},
			[]string{"event", "status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRecommendation counts a recommendation served from source ("llm", "cache" or "fallback").
func (m *Metrics) IncrRecommendation(source, stage string) {
	m.recommendations.WithLabelValues(source, stage).Inc()
}

// AddDealsMutated counts n deals written by operation.
func (m *Metrics) AddDealsMutated(operation string, n int) {
	m.dealsMutated.WithLabelValues(operation).Add(float64(n))
}

// ObserveHealthScore records a freshly computed score.
func (m *Metrics) ObserveHealthScore(score int) {
	m.healthScores.Observe(float64(score))
}

// IncrWebhook counts an automation webhook call.
func (m *Metrics) IncrWebhook(event, status string) {
	m.webhooks.WithLabelValues(event, status).Inc()
}

// IncrEventPublished counts a published deal event.
func (m *Metrics) IncrEventPublished(event, status string) {
	m.eventsPublished.WithLabelValues(event, status).Inc()
}
