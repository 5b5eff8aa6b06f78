package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func newTestRouter(t *testing.T, f *fixture, cfg *config.Config) (*chi.Mux, *Handler) {
	t.Helper()
	h := NewHandler(f.svc, NewHub(), cfg)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(identity.Middleware)
	h.RegisterRoutes(r)
	return r, h
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return got
}

func TestHandleChatScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi","session_id":"s1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	got := decodeBody(t, w)
	if got["agent_used"] != "Research Assistant" {
		t.Fatalf("agent_used = %v", got["agent_used"])
	}
	if s, _ := got["response"].(string); s == "" {
		t.Fatalf("empty response")
	}

	h, _ := f.svc.History(t.Context(), "s1")
	if len(h) != 2 {
		t.Fatalf("history = %d", len(h))
	}
}

func TestHandleChatSessionFromHeader(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"hi"}`))
	req.Header.Set(identity.SessionHeaderName, "tab-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	h, _ := f.svc.History(t.Context(), "tab-7")
	if len(h) != 2 {
		t.Fatalf("history for header session = %d", len(h))
	}
}

func TestHandleChatKeepsDistinctSessionsApart(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	for _, sid := range []string{"alice smith", "bob jones"} {
		w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi","session_id":"`+sid+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d body=%s", sid, w.Code, w.Body.String())
		}
		// system prompt + user query: nothing carried over from the other session
		if n := len(f.model.lastRequest().Messages); n != 2 {
			t.Fatalf("%s: model saw %d messages, want 2", sid, n)
		}
	}

	for _, sid := range []string{"alice smith", "bob jones"} {
		h, _ := f.svc.History(t.Context(), sid)
		if len(h) != 2 {
			t.Fatalf("history[%s] = %d", sid, len(h))
		}
	}
	if h, _ := f.svc.History(t.Context(), identity.DefaultSessionIDValue); len(h) != 0 {
		t.Fatalf("default session picked up %d messages", len(h))
	}
}

func TestHandleChatInvalidSessionID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	long := strings.Repeat("s", identity.MaxSessionIDLen+1)
	w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi","session_id":"`+long+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w); got["error"] != "invalid session id" {
		t.Fatalf("body = %v", got)
	}

	w = doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi","session_id":"a\u0000b"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("control char: status = %d", w.Code)
	}
	if f.logs.Len() != 0 {
		t.Fatalf("rejected requests reached the admin log")
	}
}

func TestHandleChatNoQuery(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	for _, body := range []string{`{}`, `{"query":""}`, ``} {
		w := doJSON(t, r, http.MethodPost, "/chat", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, w.Code)
		}
		if got := decodeBody(t, w); got["error"] != "No query provided" {
			t.Fatalf("body %q: error = %v", body, got["error"])
		}
	}
}

func TestHandleChatInvalidJSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodPost, "/chat", `{"query":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleChatBodyTooLarge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cfg := &config.Config{MaxRequestBodySize: 32}
	r, _ := newTestRouter(t, f, cfg)

	body := `{"query":"` + strings.Repeat("x", 100) + `"}`
	w := doJSON(t, r, http.MethodPost, "/chat", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleChatAgentFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.model.err = errors.New("model unavailable")
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi","session_id":"s1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w); !strings.Contains(got["error"].(string), "model unavailable") {
		t.Fatalf("error = %v", got["error"])
	}

	admin := decodeBody(t, doJSON(t, r, http.MethodGet, "/admin", ""))
	logs := admin["admin_logs"].([]any)
	if len(logs) != 1 || !strings.HasPrefix(logs[0].(string), "Error: ") {
		t.Fatalf("admin_logs = %v", logs)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cfg := &config.Config{
		MaxRequestBodySize: 1 << 20,
		RateLimit:          config.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute},
	}
	r, _ := newTestRouter(t, f, cfg)

	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi"}`); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if w := doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
}

func TestHandleGetAgents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "Tutor")
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodGet, "/get_agents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Agents []string `json:"agents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Agents) != 2 || got.Agents[0] != "Research Assistant" || got.Agents[1] != "Tutor" {
		t.Fatalf("agents = %v", got.Agents)
	}
}

func TestHandleSetAgent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "Tutor")
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodPost, "/set_agent", `{"agent_name":"Tutor"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w); got["message"] != "Agent switched to Tutor" {
		t.Fatalf("message = %v", got["message"])
	}

	w = doJSON(t, r, http.MethodPost, "/set_agent", `{"agent_name":"Pirate"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w); got["error"] != "Invalid agent name" {
		t.Fatalf("error = %v", got["error"])
	}

	w = doJSON(t, r, http.MethodPost, "/chat", `{"query":"hi"}`)
	if got := decodeBody(t, w); got["agent_used"] != "Tutor" {
		t.Fatalf("agent_used = %v after invalid switch", got["agent_used"])
	}
}

func TestHandleAdminEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	r, _ := newTestRouter(t, f, nil)

	w := doJSON(t, r, http.MethodGet, "/admin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"admin_logs":[]`)) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
