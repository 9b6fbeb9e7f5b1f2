// Package metrics registers every Prometheus collector the server exports
// and serves them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eshop/internal/auth/service"
	"eshop/internal/catalog"
	"eshop/internal/docstore"
	"eshop/internal/media"
	"eshop/internal/platform/redis"
	"eshop/pkg/platform/middleware/auth"
	"eshop/pkg/platform/middleware/request"
)

// Metrics holds the collectors of each component. Components accept nil
// and then record nothing, so tests never register collectors.
type Metrics struct {
	Request *request.Metrics
	Gate    *auth.Metrics
	Users   *service.Metrics
	Store   *docstore.Metrics
	Media   *media.Metrics
	Catalog *catalog.Metrics
	Redis   *redis.Metrics
}

// New creates and registers all Prometheus metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		Request: request.NewMetrics(),
		Gate:    auth.NewMetrics(),
		Users:   service.NewMetrics(),
		Store:   docstore.NewMetrics(),
		Media:   media.NewMetrics(),
		Catalog: catalog.NewMetrics(),
		Redis:   redis.NewMetrics(),
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
