package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradegate/pkg/platform/middleware/admin"
	authmw "tradegate/pkg/platform/middleware/auth"
	"tradegate/pkg/platform/middleware/metadata"
	request "tradegate/pkg/platform/middleware/request"
	"tradegate/pkg/platform/middleware/requesttime"
)

// RouterConfig carries the cross-cutting pieces the router needs besides the
// handler itself.
type RouterConfig struct {
	Logger     *slog.Logger
	Validator  authmw.JWTValidator
	Observer   request.Observer
	Gatherer   prometheus.Gatherer
	AdminToken string

	// HealthChecks are reported by GET /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// NewRouter assembles the middleware chain and mounts every endpoint.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(cfg.Logger, cfg.Observer))

	r.Get("/healthz", healthHandler(cfg.HealthChecks, cfg.Logger))

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	})

	h.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireSession(cfg.Validator, cfg.Logger))
		h.RegisterOnboarding(r)
	})

	return r
}
