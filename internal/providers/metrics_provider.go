package providers

import (
	"clarity/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits(tier string)
	IncCacheMisses(tier string)
	IncFetchTotal(endpoint string, outcome string)
	ObserveFetchDuration(endpoint string, duration time.Duration)
	SetBreakerState(name string, state float64)
	ObservePersistenceDuration(duration time.Duration)
	SetActiveQueries(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	fetchTotal          *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	breakerState        *prometheus.GaugeVec
	persistenceDuration prometheus.Histogram
	activeQueries       prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits(tier string) {
	m.cacheHits.WithLabelValues(tier).Inc()
}

func (m *MetricsProvider) IncCacheMisses(tier string) {
	m.cacheMisses.WithLabelValues(tier).Inc()
}

func (m *MetricsProvider) IncFetchTotal(endpoint string, outcome string) {
	m.fetchTotal.WithLabelValues(endpoint, outcome).Inc()
}

func (m *MetricsProvider) ObserveFetchDuration(endpoint string, duration time.Duration) {
	m.fetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) SetBreakerState(name string, state float64) {
	m.breakerState.WithLabelValues(name).Set(state)
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetActiveQueries(count int) {
	m.activeQueries.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clarity_requests_total",
			Help: "Total number of HTTP requests served",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clarity_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clarity_cache_hits_total",
			Help: "Total number of cache hits per tier",
		}, []string{"tier"}),

		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clarity_cache_misses_total",
			Help: "Total number of cache misses per tier",
		}, []string{"tier"}),

		fetchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "clarity_upstream_fetch_total",
			Help: "Total number of backend API calls by outcome",
		}, []string{"endpoint", "outcome"}),

		fetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clarity_upstream_fetch_duration_seconds",
			Help:    "Backend API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		breakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clarity_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "clarity_persistence_duration_seconds",
			Help:    "Duration of query state persistence in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		activeQueries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "clarity_active_queries",
			Help: "Number of queries with at least one subscriber",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits(_ string)                            {}
func (n *noopMetrics) IncCacheMisses(_ string)                          {}
func (n *noopMetrics) IncFetchTotal(_ string, _ string)                 {}
func (n *noopMetrics) ObserveFetchDuration(_ string, _ time.Duration)   {}
func (n *noopMetrics) SetBreakerState(_ string, _ float64)              {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) SetActiveQueries(_ int)                           {}

// NewNoopMetrics returns a metrics provider that discards everything.
func NewNoopMetrics() MetricsProviderInterface {
	return &noopMetrics{}
}
