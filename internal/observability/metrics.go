package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every custom collector the application exports.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Remote API Metrics
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec

	// User Metrics
	UserOperationsTotal *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	ToastsTotal         *prometheus.CounterVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Queue Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec

	// Activity Metrics
	ActivityRecordedTotal *prometheus.CounterVec
	ActivityFailedTotal   *prometheus.CounterVec
}

// NewMetrics registers all collectors with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		RemoteRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_requests_total",
				Help: "Total number of calls made to the remote users API",
			},
			[]string{"operation", "status"},
		),

		RemoteRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_request_duration_seconds",
				Help:    "Duration of calls to the remote users API in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		UserOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_operations_total",
				Help: "Total number of user operations by outcome",
			},
			[]string{"operation", "outcome"}, // outcome: success, invalid, failed
		),

		ValidationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_validation_failures_total",
				Help: "Total number of rejected form fields",
			},
			[]string{"field"},
		),

		ToastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toasts_total",
				Help: "Total number of toast notifications pushed",
			},
			[]string{"level"},
		),

		CacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),

		QueueMessagesPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"routing_key"},
		),

		QueueMessagesConsumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"queue_name"},
		),

		ActivityRecordedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_recorded_total",
				Help: "Total number of activity entries written",
			},
			[]string{"action"},
		),

		ActivityFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_failed_total",
				Help: "Total number of activity entries that could not be written",
			},
			[]string{"error_type"},
		),
	}
}

// GlobalMetrics is the process-wide Metrics instance.
var GlobalMetrics *Metrics

var initOnce sync.Once

// InitMetrics builds GlobalMetrics on first call and returns it.
func InitMetrics() *Metrics {
	initOnce.Do(func() {
		GlobalMetrics = NewMetrics()
	})
	return GlobalMetrics
}
