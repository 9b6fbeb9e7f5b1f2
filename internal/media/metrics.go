package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Uploads *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eshop_media_uploads_total",
			Help: "Media uploads by folder and result",
		}, []string{"folder", "result"}),
	}
}

func (m *Metrics) incUpload(folder, result string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(folder, result).Inc()
}
