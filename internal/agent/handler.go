package agent

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/agentchat/internal/api"
	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Client-facing error messages.
const (
	msgNoQuery       = "No query provided"
	msgInvalidAgent  = "Invalid agent name"
	msgRateLimited   = "rate limit exceeded"
	msgBodyTooLarge  = "request body too large"
	msgInvalidBody   = "invalid request body"
	msgInvalidSess   = "invalid session id"
	msgAgentSwitched = "agent_switched"
)

// Handler serves the chat HTTP API.
type Handler struct {
	svc         *Service
	hub         *Hub
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a handler. cfg may be nil, in which case defaults apply.
func NewHandler(svc *Service, hub *Hub, cfg *config.Config) *Handler {
	rateLimitRequests := 30
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		maxBodySize = cfg.MaxRequestBodySize
	}
	if hub == nil {
		hub = NewHub()
	}

	h := &Handler{
		svc:         svc,
		hub:         hub,
		rateLimiter: NewRateLimiter(rateLimitRequests, rateLimitWindow),
		maxBodySize: maxBodySize,
	}
	svc.OnAgentSwitch(func(name string) {
		hub.Broadcast(map[string]string{"type": msgAgentSwitched, "agent_name": name})
	})
	return h
}

// RegisterRoutes mounts the chat API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/get_agents", h.HandleGetAgents)
	r.Post("/set_agent", h.HandleSetAgent)
	r.Post("/chat", h.HandleChat)
	r.Get("/admin", h.HandleAdmin)
}

// Close stops background work.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// HandleGetAgents handles GET /get_agents.
func (h *Handler) HandleGetAgents(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string][]string{"agents": h.svc.Agents()})
}

// HandleSetAgent handles POST /set_agent.
func (h *Handler) HandleSetAgent(w http.ResponseWriter, r *http.Request) {
	var req SetAgentRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.svc.SetAgent(req.AgentName)
	switch {
	case errors.Is(err, ErrUnknownAgent):
		api.Error(w, http.StatusBadRequest, msgInvalidAgent)
	case err != nil:
		slog.Error("Failed to switch agent", "agent", req.AgentName, "error", err)
		api.Error(w, http.StatusInternalServerError, err.Error())
	default:
		api.JSON(w, http.StatusOK, map[string]string{"message": msg})
	}
}

// HandleChat handles POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(identity.ClientIPFromContext(r.Context())) {
		api.Error(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}
	sid, err := identity.ResolveSessionID(r.Context(), req.SessionID)
	if err != nil {
		api.Error(w, http.StatusBadRequest, msgInvalidSess)
		return
	}
	req.SessionID = sid
	req.RequestID = chiMiddleware.GetReqID(r.Context())

	resp, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		writeChatError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleAdmin handles GET /admin.
func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string][]string{"admin_logs": h.svc.AdminLogs()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := api.DecodeJSON(w, r, h.maxBodySize, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, api.ErrBodyTooLarge):
		api.Error(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
	default:
		api.Error(w, http.StatusBadRequest, msgInvalidBody)
	}
	return false
}

func writeChatError(w http.ResponseWriter, err error) {
	var invErr *InvocationError
	switch {
	case errors.Is(err, ErrEmptyQuery):
		api.Error(w, http.StatusBadRequest, msgNoQuery)
	case errors.As(err, &invErr):
		api.Error(w, http.StatusInternalServerError, invErr.Error())
	default:
		api.Error(w, http.StatusInternalServerError, err.Error())
	}
}
