package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ashureev/agentchat/internal/config"
	"github.com/google/uuid"
	ollama "github.com/ollama/ollama/api"
)

// OllamaModel talks to a local or remote Ollama server.
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel parses cfg.OllamaHost and builds a client.
func NewOllamaModel(cfg config.LLMConfig) (*OllamaModel, error) {
	host := strings.TrimSpace(cfg.OllamaHost)
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	return &OllamaModel{
		client: ollama.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

// Name returns the provider and model.
func (m *OllamaModel) Name() string {
	return "ollama/" + m.model
}

// Chat sends one non-streaming chat request.
func (m *OllamaModel) Chat(ctx context.Context, req Request) (Response, error) {
	tools, err := toOllamaTools(req.Tools)
	if err != nil {
		return Response{}, err
	}
	messages, err := toOllamaMessages(req.Messages)
	if err != nil {
		return Response{}, err
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    m.model,
		Messages: messages,
		Stream:   &stream,
		Tools:    tools,
	}

	var (
		content strings.Builder
		calls   []ollama.ToolCall
	)
	err = m.client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		calls = append(calls, resp.Message.ToolCalls...)
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ollama chat: %w", err)
	}

	out := Response{Content: content.String()}
	for _, tc := range calls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			return Response{}, fmt.Errorf("encode ollama tool arguments: %w", err)
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: string(args),
		})
	}
	return out, nil
}

func toOllamaMessages(messages []Message) ([]ollama.Message, error) {
	out := make([]ollama.Message, 0, len(messages))
	for _, m := range messages {
		msg := ollama.Message{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == RoleTool {
			msg.ToolName = m.Name
		}
		for _, tc := range m.ToolCalls {
			var call ollama.ToolCall
			call.Function.Name = tc.Name
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &call.Function.Arguments); err != nil {
					return nil, fmt.Errorf("decode tool arguments for %s: %w", tc.Name, err)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
		out = append(out, msg)
	}
	return out, nil
}

// toOllamaTools goes through JSON so the schema maps onto whatever
// parameter struct the ollama api package defines.
func toOllamaTools(tools []ToolDef) (ollama.Tools, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make(ollama.Tools, 0, len(tools))
	for _, t := range tools {
		raw, err := json.Marshal(map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("encode tool %s: %w", t.Name, err)
		}
		var tool ollama.Tool
		if err := json.Unmarshal(raw, &tool); err != nil {
			return nil, fmt.Errorf("convert tool %s: %w", t.Name, err)
		}
		out = append(out, tool)
	}
	return out, nil
}
