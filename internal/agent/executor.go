package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ashureev/agentchat/internal/llm"
	"github.com/ashureev/agentchat/internal/tools"
)

// IterationLimitOutput is returned as Output when the loop runs out of iterations.
const IterationLimitOutput = "Agent stopped due to iteration limit or time limit."

// ToolExecutor runs the tool-calling loop for one agent persona.
type ToolExecutor struct {
	model         llm.ChatModel
	tools         *tools.Registry
	systemPrompt  string
	maxIterations int
	structured    bool
	logger        *slog.Logger
}

// ExecutorConfig configures a ToolExecutor.
type ExecutorConfig struct {
	Model         llm.ChatModel
	Tools         *tools.Registry
	SystemPrompt  string
	MaxIterations int
	Structured    bool
	Logger        *slog.Logger
}

// NewToolExecutor creates an executor. The system prompt is used verbatim.
func NewToolExecutor(cfg ExecutorConfig) *ToolExecutor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 15
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ToolExecutor{
		model:         cfg.Model,
		tools:         cfg.Tools,
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: cfg.MaxIterations,
		structured:    cfg.Structured,
		logger:        cfg.Logger,
	}
}

// SystemPrompt returns the prompt sent as the first message of every turn.
func (e *ToolExecutor) SystemPrompt() string { return e.systemPrompt }

// Invoke answers in.Query. Messages are sent in four segments: system prompt,
// prior turns, the current query, then the scratchpad of tool calls and
// observations accumulated during this turn.
func (e *ToolExecutor) Invoke(ctx context.Context, in Input) (*Result, error) {
	msgs := make([]llm.Message, 0, len(in.ChatHistory)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: e.systemPrompt})
	for _, m := range in.ChatHistory {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Query})

	defs := e.tools.Definitions()
	result := &Result{Query: in.Query}

	for i := 0; i < e.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := e.model.Chat(ctx, llm.Request{Messages: msgs, Tools: defs})
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", e.model.Name(), err)
		}

		if len(resp.ToolCalls) == 0 {
			result.Output = resp.Content
			if e.structured {
				result.Parsed = parseStructured(resp.Content)
			}
			return result, nil
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			observation, err := e.runTool(ctx, call)
			if err != nil {
				return nil, err
			}
			result.Steps = append(result.Steps, Step{Tool: call.Name, Arguments: call.Arguments, Observation: observation})
			if e.tools.Has(call.Name) && !slices.Contains(result.ToolsUsed, call.Name) {
				result.ToolsUsed = append(result.ToolsUsed, call.Name)
			}
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    observation,
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}

	e.logger.Warn("Agent iteration limit reached", "max_iterations", e.maxIterations, "steps", len(result.Steps))
	result.Output = IterationLimitOutput
	return result, nil
}

// runTool executes call. An unknown tool name becomes an observation so the
// model can correct itself; a failing tool aborts the turn.
func (e *ToolExecutor) runTool(ctx context.Context, call llm.ToolCall) (string, error) {
	if !e.tools.Has(call.Name) {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", call.Name, strings.Join(e.tools.Names(), ", ")), nil
	}

	args := json.RawMessage(call.Arguments)
	if strings.TrimSpace(call.Arguments) == "" {
		args = json.RawMessage("{}")
	}

	e.logger.Debug("Invoking tool", "tool", call.Name, "call_id", call.ID)
	out, err := e.tools.Execute(ctx, call.Name, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", call.Name, err)
	}
	return out, nil
}
