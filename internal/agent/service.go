package agent

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/agentchat/internal/adminlog"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/registry"
	"github.com/ashureev/agentchat/internal/store"
)

// sessionLockStripes is the number of mutexes shared by all sessions. Two
// sessions may hash to the same stripe and wait on each other; memory stays
// fixed however many session ids clients invent.
const sessionLockStripes = 64

// AgentSwitchListener is notified after the active agent changes.
type AgentSwitchListener func(name string)

// Service owns the active agent and runs chat turns against it.
type Service struct {
	registry    *registry.Store
	factory     *Factory
	active      *Active
	history     store.Repository
	logs        *adminlog.Log
	adminWindow int
	logger      *slog.Logger

	sessionLocks [sessionLockStripes]sync.Mutex

	listenersMu sync.RWMutex
	listeners   []AgentSwitchListener
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Registry    *registry.Store
	Factory     *Factory
	History     store.Repository
	Logs        *adminlog.Log
	AdminWindow int
	Logger      *slog.Logger
}

// NewService builds the default agent and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Registry == nil || cfg.Factory == nil || cfg.History == nil || cfg.Logs == nil {
		return nil, errors.New("agent service requires registry, factory, history and logs")
	}
	if cfg.AdminWindow <= 0 {
		cfg.AdminWindow = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	exec, name, err := cfg.Factory.Build(cfg.Factory.DefaultAgent())
	if err != nil {
		return nil, fmt.Errorf("build default agent: %w", err)
	}

	return &Service{
		registry:    cfg.Registry,
		factory:     cfg.Factory,
		active:      NewActive(name, exec),
		history:     cfg.History,
		logs:        cfg.Logs,
		adminWindow: cfg.AdminWindow,
		logger:      cfg.Logger,
	}, nil
}

// Agents returns the registered agent names.
func (s *Service) Agents() []string {
	return s.registry.Names()
}

// ActiveAgent returns the name of the agent currently serving chats.
func (s *Service) ActiveAgent() string {
	return s.active.Name()
}

// OnAgentSwitch registers fn to run after every successful SetAgent.
func (s *Service) OnAgentSwitch(fn AgentSwitchListener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// SetAgent rebuilds the active agent. An unknown name returns ErrUnknownAgent
// and leaves the current agent in place.
func (s *Service) SetAgent(name string) (string, error) {
	if !s.registry.Has(name) {
		return "", ErrUnknownAgent
	}
	exec, resolved, err := s.factory.Build(name)
	if err != nil {
		return "", fmt.Errorf("build agent %s: %w", name, err)
	}

	previous := s.active.Name()
	s.active.Set(resolved, exec)
	s.logger.Info("Active agent switched", "from", previous, "to", resolved)

	s.listenersMu.RLock()
	listeners := append([]AgentSwitchListener(nil), s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(resolved)
	}

	return fmt.Sprintf("Agent switched to %s", resolved), nil
}

// Chat runs one turn for req.SessionID. On success the query and reply are
// appended to the session history; on failure only the admin log records it.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	unlock := s.lockSession(req.SessionID)
	defer unlock()

	name, exec := s.active.Get()
	logger := s.logger.With("session_id", req.SessionID, "agent", name, "request_id", req.RequestID)

	history, err := s.history.History(ctx, req.SessionID)
	if err != nil {
		return nil, s.fail(logger, req, name, fmt.Errorf("load history: %w", err))
	}

	result, err := exec.Invoke(ctx, Input{Query: req.Query, ChatHistory: history})
	if err != nil {
		return nil, s.fail(logger, req, name, err)
	}

	reply := result.Reply()
	if err := s.history.Append(ctx, req.SessionID, domain.Exchange(req.Query, reply)...); err != nil {
		return nil, s.fail(logger, req, name, fmt.Errorf("save history: %w", err))
	}

	entry := adminlog.Entry{
		Kind:      adminlog.KindResponse,
		Agent:     name,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Text:      fmt.Sprintf("Using Agent: %s Agent Response: %s", name, result.String()),
		Meta:      map[string]any{"tools_used": result.ToolsUsed, "steps": len(result.Steps)},
	}
	if result.Parsed != nil {
		entry.Meta["parsed"] = result.Parsed
	}
	s.logs.Append(entry)

	logger.Info("Chat turn completed", "tools_used", result.ToolsUsed, "reply_len", len(reply))
	return &ChatResponse{Response: reply, AgentUsed: name}, nil
}

// AdminLogs returns the texts of the most recent admin log entries, oldest first.
func (s *Service) AdminLogs() []string {
	return adminlog.Texts(s.logs.Recent(s.adminWindow))
}

// History returns the stored turns for a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	return s.history.History(ctx, sessionID)
}

func (s *Service) fail(logger *slog.Logger, req ChatRequest, agent string, err error) error {
	logger.Error("Agent invocation failed", "error", err)
	s.logs.Append(adminlog.Entry{
		Kind:      adminlog.KindError,
		Agent:     agent,
		SessionID: req.SessionID,
		RequestID: req.RequestID,
		Text:      fmt.Sprintf("Error: %+v", err),
	})
	return &InvocationError{Agent: agent, Err: err}
}

// lockSession serializes turns within one session so history keeps arrival order.
func (s *Service) lockSession(sessionID string) func() {
	mu := &s.sessionLocks[sessionStripe(sessionID)]
	mu.Lock()
	return mu.Unlock
}

func sessionStripe(sessionID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return h.Sum32() % sessionLockStripes
}
