package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pps/internal/platform/metrics"
	"pps/internal/platform/middleware"
	"pps/pkg/platform/httputil"
)

// RouterDeps carries everything NewRouter mounts.
type RouterDeps struct {
	Handler   *Handler
	Validator middleware.JWTValidator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// NewRouter builds the API router. /health and /metrics are public; every
// route under /api requires a bearer token.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.Handler.Register(api)
	})
	return r
}
