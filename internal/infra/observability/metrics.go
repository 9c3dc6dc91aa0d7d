package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bill insights service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	staleDrops      prometheus.Counter
	invalidations   prometheus.Counter
	forcedResets    prometheus.Counter
	syncOps         *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insights_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_external_errors_total",
				Help: "Total errors from external services and builders.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		staleDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_report_stale_drops_total",
				Help: "Report builds discarded because a newer request won.",
			},
		),
		invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_report_invalidations_total",
				Help: "Report cache clears triggered by data-version advances.",
			},
		),
		forcedResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "insights_report_forced_resets_total",
				Help: "Loading states force-cleared by the liveness guard.",
			},
		),
		syncOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_sync_operations_total",
				Help: "Sync upload operations by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insights_llm_tokens_total",
				Help: "Total insight-agent tokens consumed.",
			},
			[]string{"type"},
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

// IncrStaleDrop counts a report build discarded by a newer winner.
func (m *Metrics) IncrStaleDrop() {
	m.staleDrops.Inc()
}

// IncrInvalidation counts a whole-cache clear.
func (m *Metrics) IncrInvalidation() {
	m.invalidations.Inc()
}

// IncrForcedReset counts a liveness-guard reset.
func (m *Metrics) IncrForcedReset() {
	m.forcedResets.Inc()
}

// IncrSyncOp counts one upload operation by action and outcome.
func (m *Metrics) IncrSyncOp(action, outcome string) {
	m.syncOps.WithLabelValues(action, outcome).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// ReportMetricsSnapshot is the payload of GET /v1/metrics/reports.
type ReportMetricsSnapshot struct {
	CacheHits     float64 `json:"cache_hits"`
	CacheMisses   float64 `json:"cache_misses"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	StaleDrops    float64 `json:"stale_drops"`
	Invalidations float64 `json:"invalidations"`
	ForcedResets  float64 `json:"forced_resets"`
	BuilderErrors float64 `json:"builder_errors"`
}

// GetReportSnapshot returns current report-cache counters for the
// operational metrics endpoint.
func (m *Metrics) GetReportSnapshot() *ReportMetricsSnapshot {
	hits := getCounterVecValue(m.cacheHits, "report")
	misses := getCounterVecValue(m.cacheMisses, "report")

	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &ReportMetricsSnapshot{
		CacheHits:     hits,
		CacheMisses:   misses,
		CacheHitRate:  hitRate,
		StaleDrops:    getCounterValue(m.staleDrops),
		Invalidations: getCounterValue(m.invalidations),
		ForcedResets:  getCounterValue(m.forcedResets),
		BuilderErrors: getCounterVecValue(m.externalErrors, "report_builder"),
	}
}

func getCounterVecValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	metric := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}

func getCounterValue(c prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		return 0
	}
	if metric.Counter != nil && metric.Counter.Value != nil {
		return *metric.Counter.Value
	}
	return 0
}
