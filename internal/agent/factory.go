package agent

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/agentchat/internal/llm"
	"github.com/ashureev/agentchat/internal/registry"
	"github.com/ashureev/agentchat/internal/tools"
)

// ModelBinder returns the chat model a freshly built executor runs on.
type ModelBinder func() (llm.ChatModel, error)

// Factory builds executors from registry entries.
type Factory struct {
	registry      *registry.Store
	bindModel     ModelBinder
	tools         *tools.Registry
	defaultAgent  string
	maxIterations int
	structured    bool
	logger        *slog.Logger
}

// FactoryConfig configures a Factory.
type FactoryConfig struct {
	Registry      *registry.Store
	BindModel     ModelBinder
	Tools         *tools.Registry
	DefaultAgent  string
	MaxIterations int
	Structured    bool
	Logger        *slog.Logger
}

// NewFactory creates a Factory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Registry == nil {
		return nil, errors.New("agent factory requires a registry")
	}
	if cfg.BindModel == nil {
		return nil, errors.New("agent factory requires a model binder")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Factory{
		registry:      cfg.Registry,
		bindModel:     cfg.BindModel,
		tools:         cfg.Tools,
		defaultAgent:  cfg.DefaultAgent,
		maxIterations: cfg.MaxIterations,
		structured:    cfg.Structured,
		logger:        cfg.Logger,
	}, nil
}

// DefaultAgent returns the fallback agent name.
func (f *Factory) DefaultAgent() string { return f.defaultAgent }

// Build returns an executor for name together with the name actually used.
// An unknown name falls back to the default agent and is logged. Model
// binding errors are returned unchanged.
func (f *Factory) Build(name string) (Executor, string, error) {
	def, ok := f.registry.Get(name)
	if !ok {
		f.logger.Warn("Unknown agent requested, using default", "requested", name, "default", f.defaultAgent)
		name = f.defaultAgent
		def, ok = f.registry.Get(name)
		if !ok {
			return nil, "", fmt.Errorf("default agent %q is not registered", name)
		}
	}

	model, err := f.bindModel()
	if err != nil {
		return nil, "", err
	}

	exec := NewToolExecutor(ExecutorConfig{
		Model:         model,
		Tools:         f.tools,
		SystemPrompt:  BuildSystemPrompt(def.SystemPrompt, f.structured),
		MaxIterations: f.maxIterations,
		Structured:    f.structured,
		Logger:        f.logger.With("agent", name),
	})
	f.logger.Info("Agent executor built", "agent", name, "model", model.Name())
	return exec, name, nil
}
