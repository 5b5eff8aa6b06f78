package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/agentchat/internal/adminlog"
	"github.com/ashureev/agentchat/internal/domain"
	"github.com/ashureev/agentchat/internal/llm"
	"github.com/ashureev/agentchat/internal/registry"
	"github.com/ashureev/agentchat/internal/store"
	"github.com/ashureev/agentchat/internal/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Chat(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return llm.Response{}, m.err
	}
	if len(m.responses) == 0 {
		return llm.Response{Content: "done"}, nil
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

func (m *scriptedModel) lastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

// fakeTool answers with a fixed observation or error.
type fakeTool struct {
	name   string
	output string
	err    error

	mu    sync.Mutex
	calls []string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Definition() llm.ToolDef {
	return llm.ToolDef{Name: f.name, Description: f.Description(), Parameters: map[string]any{"type": "object"}}
}

func (f *fakeTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, string(args))
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

var errToolBroken = errors.New("tool broken")

// echoExecutor replies "<agent>: <query>" so tests can tell agents apart.
func echoExecutor(agent string) Executor {
	return ExecutorFunc(func(_ context.Context, in Input) (*Result, error) {
		return &Result{Query: in.Query, Output: agent + ": " + in.Query}, nil
	})
}

type fixture struct {
	registry *registry.Store
	history  store.Repository
	logs     *adminlog.Log
	model    *scriptedModel
	svc      *Service
}

// newFixture wires a service around an in-memory store, a temp admin log and
// a registry holding the default agent plus any extra names.
func newFixture(t *testing.T, extra ...string) *fixture {
	t.Helper()
	return newFixtureWithHistory(t, store.NewMemory(100), extra...)
}

// newFixtureWithHistory is newFixture with a caller-supplied history store.
func newFixtureWithHistory(t *testing.T, history store.Repository, extra ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	reg := registry.New(filepath.Join(dir, "agents.json"))
	if err := reg.Put("Research Assistant", registry.DefaultPrompt); err != nil {
		t.Fatal(err)
	}
	for _, name := range extra {
		if err := reg.Put(name, "You are "+name+"."); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := adminlog.Open(adminlog.Config{Path: filepath.Join(dir, "admin.json"), MemoryLimit: 100, QueueSize: 10}, discardLogger())
	if err != nil {
		t.Fatalf("adminlog.Open: %v", err)
	}
	t.Cleanup(func() { _ = logs.Close() })

	model := &scriptedModel{}
	factory, err := NewFactory(FactoryConfig{
		Registry:     reg,
		BindModel:    func() (llm.ChatModel, error) { return model, nil },
		Tools:        tools.NewRegistry(),
		DefaultAgent: "Research Assistant",
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	svc, err := NewService(ServiceConfig{
		Registry: reg,
		Factory:  factory,
		History:  history,
		Logs:     logs,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &fixture{registry: reg, history: history, logs: logs, model: model, svc: svc}
}

var errDiskFull = errors.New("disk full")

// failingAppendRepo is a history store whose writes always fail.
type failingAppendRepo struct {
	store.Repository
}

func (failingAppendRepo) Append(context.Context, string, ...domain.Message) error {
	return errDiskFull
}
