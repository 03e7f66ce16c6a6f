package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics contains Prometheus metrics for report store operations.
type StoreMetrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ItemsReturned     *prometheus.HistogramVec
}

// NewStoreMetrics creates store metrics registered with the global registry.
func NewStoreMetrics(namespace string) *StoreMetrics {
	return NewStoreMetricsWith(Registry, namespace)
}

// NewStoreMetricsWith creates store metrics registered with reg.
func NewStoreMetricsWith(reg prometheus.Registerer, namespace string) *StoreMetrics {
	m := &StoreMetrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of report store operations",
			},
			[]string{"operation", "status"}, // status: success, error
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of report store operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ItemsReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "page_items",
				Help:      "Number of items returned per query or scan page",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.ItemsReturned,
	)

	return m
}
