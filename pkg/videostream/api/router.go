package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the gateway routes. Extra middlewares run after request id
// assignment and before panic recovery.
func NewRouter(video *VideoHandler, health *HealthHandler, metricsHandler http.Handler, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)

	if health != nil {
		r.Get("/healthz", health.Healthz)
		r.Get("/readyz", health.Readyz)
	}
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Mount("/video", video.Routes())

	return r
}
