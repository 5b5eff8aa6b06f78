package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/agentchat/internal/api"
	"github.com/ashureev/agentchat/internal/identity"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// wsMessage is the client-to-server frame.
type wsMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query,omitempty"`
}

// wsReply is the server-to-client frame for chat turns.
type wsReply struct {
	Type      string `json:"type"`
	Response  string `json:"response,omitempty"`
	AgentUsed string `json:"agent_used,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WebSocketHandler runs chat turns over a WebSocket connection.
type WebSocketHandler struct {
	svc            *Service
	hub            *Hub
	rateLimiter    *RateLimiter
	allowedOrigins []string
	isDev          bool
	turnTimeout    time.Duration
}

// NewWebSocketHandler creates a WebSocket handler sharing h's service, hub and limiter.
func NewWebSocketHandler(h *Handler, allowedOrigins []string, isDev bool, turnTimeout time.Duration) *WebSocketHandler {
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}
	return &WebSocketHandler{
		svc:            h.svc,
		hub:            h.hub,
		rateLimiter:    h.rateLimiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		turnTimeout:    turnTimeout,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := identity.ClientIPFromContext(r.Context())
	sessionID, err := identity.ResolveSessionID(r.Context(), "")
	if err != nil {
		api.Error(w, http.StatusBadRequest, msgInvalidSess)
		return
	}
	slog.Info("WebSocket connection request", "session_id", sessionID, "ip", clientIP)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.hub.Register(sessionID, ws)
	defer h.hub.Unregister(sessionID, ws)

	h.readLoop(r.Context(), ws, sessionID, clientIP)
	slog.Info("Chat socket closed", "session_id", sessionID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID, clientIP string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reply(ws, wsReply{Type: "error", Error: msgInvalidBody})
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(ws, wsReply{Type: "pong"})
		case "chat":
			if !h.rateLimiter.Allow(clientIP) {
				h.reply(ws, wsReply{Type: "error", Error: msgRateLimited})
				continue
			}
			h.reply(ws, h.runTurn(ctx, sessionID, msg))
		default:
			h.reply(ws, wsReply{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) runTurn(ctx context.Context, sessionID string, msg wsMessage) wsReply {
	turnCtx, cancel := context.WithTimeout(ctx, h.turnTimeout)
	defer cancel()

	sid := sessionID
	if msg.SessionID != "" {
		var err error
		if sid, err = identity.ValidateSessionID(msg.SessionID); err != nil {
			return wsReply{Type: "error", Error: msgInvalidSess}
		}
	}

	resp, err := h.svc.Chat(turnCtx, ChatRequest{
		SessionID: sid,
		Query:     msg.Query,
		RequestID: "ws-" + uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) {
			return wsReply{Type: "error", Error: msgNoQuery}
		}
		return wsReply{Type: "error", Error: err.Error()}
	}
	return wsReply{Type: "reply", Response: resp.Response, AgentUsed: resp.AgentUsed}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *WebSocketHandler) reply(ws *websocket.Conn, v wsReply) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode reply", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Failed to send websocket reply", "error", err)
	}
}
