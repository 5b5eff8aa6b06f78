// Package llm adapts chat-completion backends to a single tool-calling interface.
package llm

import (
	"context"
	"fmt"

	"github.com/ashureev/agentchat/internal/config"
)

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a chat transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to run a named tool. Arguments is a JSON object.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef describes a tool the model may call. Parameters is a JSON schema object.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a single model turn.
type Request struct {
	Messages []Message
	Tools    []ToolDef
}

// Response is the model's answer to a Request. When ToolCalls is non-empty
// the caller is expected to run them and send another Request.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel is the backend every agent runs on.
type ChatModel interface {
	Chat(ctx context.Context, req Request) (Response, error)
	Name() string
}

// New selects the backend named by cfg.Provider. No network calls are made.
func New(cfg config.LLMConfig) (ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIModel(cfg), nil
	case "ollama":
		return NewOllamaModel(cfg)
	case "echo":
		return NewEchoModel(""), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
