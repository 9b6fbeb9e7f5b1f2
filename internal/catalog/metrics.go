package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Writes *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Writes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_catalog_writes_total",
			Help: "Catalog documents written, by collection and operation.",
		}, []string{"collection", "op"}),
	}
}

func (m *Metrics) incWrite(collection, op string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(collection, op).Inc()
}
