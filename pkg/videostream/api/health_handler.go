package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/video-streaming/pkg/videostream"
)

const healthCheckTimeout = 2 * time.Second

// Dependency is a named long-lived connection checked for readiness.
// Only critical dependencies make the gateway unready.
type Dependency struct {
	Name     string
	Checker  videostream.HealthChecker
	Critical bool
}

// HealthResponse is the readiness response body
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	deps []Dependency
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Healthz reports the process is alive
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, http.StatusText(http.StatusOK))
}

// Readyz pings every dependency concurrently
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Services: make(map[string]string, len(h.deps))}
	errs := make([]error, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Add(1)
		go func(i int, dep Dependency) {
			defer wg.Done()
			errs[i] = dep.Checker.Ping(ctx)
		}(i, dep)
	}
	wg.Wait()

	unready := false
	for i, dep := range h.deps {
		if errs[i] == nil {
			resp.Services[dep.Name] = "healthy"
			continue
		}
		resp.Services[dep.Name] = "unhealthy: " + errs[i].Error()
		if dep.Critical {
			unready = true
		} else if resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	if unready {
		resp.Status = "unavailable"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
