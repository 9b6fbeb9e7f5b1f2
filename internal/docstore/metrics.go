package docstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for store operations.
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics registers the store collectors. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eshop_store_query_duration_seconds",
			Help:    "Duration of document store operations",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"collection", "operation"}),
		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_store_query_errors_total",
			Help: "Document store operations that returned an error",
		}, []string{"collection", "operation"}),
	}
}

func (m *Metrics) observe(collection, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(collection, operation).Observe(d.Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(collection, operation).Inc()
	}
}
