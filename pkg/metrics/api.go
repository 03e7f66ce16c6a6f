package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics contains Prometheus metrics for the report handlers.
type APIMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
	ResponseSize     *prometheus.HistogramVec
	ReportsCreated   prometheus.Counter
}

// NewAPIMetrics creates handler metrics registered with the global registry.
func NewAPIMetrics(namespace string) *APIMetrics {
	return NewAPIMetricsWith(Registry, namespace)
}

// NewAPIMetricsWith creates handler metrics registered with reg.
func NewAPIMetricsWith(reg prometheus.Registerer, namespace string) *APIMetrics {
	m := &APIMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of handled API requests",
			},
			[]string{"handler", "status_code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler"},
		),
		RequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of API requests currently being processed",
			},
			[]string{"handler"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "response_size_bytes",
				Help:      "Size of API response bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6), // 100B to ~10MB
			},
			[]string{"handler"},
		),
		ReportsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "reports_created_total",
				Help:      "Total number of station reports stored",
			},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.ResponseSize,
		m.ReportsCreated,
	)

	return m
}
