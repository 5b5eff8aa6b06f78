package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ActiveAgentFunc reports the currently active agent name.
type ActiveAgentFunc func() string

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store   Pinger
	active  ActiveAgentFunc
	agents  func() int
	timeout time.Duration
}

// NewHealthHandler creates a health handler. active may be nil.
func NewHealthHandler(store Pinger, active ActiveAgentFunc, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{store: store, active: active, timeout: timeout}
}

// SetAgentCount makes the health report include the registry size.
func (h *HealthHandler) SetAgentCount(fn func() int) {
	h.agents = fn
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["session_store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["session_store"] = "ok"
	}
	if h.active != nil {
		status["active_agent"] = h.active()
	}
	if h.agents != nil {
		status["agents"] = h.agents()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route. /health itself is
// answered by chi's Heartbeat middleware.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}
