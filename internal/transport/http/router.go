// Package httptransport assembles the HTTP surface: the shared middleware
// chain, the /api/v1 routes of each component and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"eshop/pkg/platform/httputil"
	"eshop/pkg/platform/middleware/request"
	"eshop/pkg/platform/middleware/requesttime"
)

// APIPrefix is where component routes are mounted.
const APIPrefix = "/api/v1"

const (
	defaultTimeout  = 30 * time.Second
	jsonBodyLimit   = 1 << 20
	uploadBodyLimit = 50 << 20
)

// Registrar mounts its routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

type Config struct {
	Development    bool
	TrustProxy     bool // client IP from X-Forwarded-For
	RequestTimeout time.Duration
	UploadLimit    int64
}

// Router holds what NewRouter mounts.
type Router struct {
	Logger         *slog.Logger
	Metrics        *request.Metrics
	API            []Registrar // mounted under APIPrefix
	Ops            []Registrar // mounted at the root
	MetricsHandler http.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config, rt Router) http.Handler {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	uploadLimit := cfg.UploadLimit
	if uploadLimit <= 0 {
		uploadLimit = uploadBodyLimit
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata(cfg.TrustProxy))
	r.Use(request.Environment(cfg.Development))
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(rt.Metrics))
	r.Use(request.Timeout(timeout))
	r.Use(request.BodyLimit(jsonBodyLimit, uploadLimit))

	r.NotFound(httputil.NotFound)
	r.MethodNotAllowed(httputil.MethodNotAllowed)

	for _, ops := range rt.Ops {
		ops.Register(r)
	}
	if rt.MetricsHandler != nil {
		r.Handle("/metrics", rt.MetricsHandler)
	}

	r.Route(APIPrefix, func(api chi.Router) {
		api.NotFound(httputil.NotFound)
		api.MethodNotAllowed(httputil.MethodNotAllowed)
		for _, component := range rt.API {
			component.Register(api)
		}
	})
	return r
}
