// Package tools implements the capabilities an agent may invoke.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/llm"
)

// Tool is a named capability the model can call with JSON arguments.
type Tool interface {
	Name() string
	Description() string
	Definition() llm.ToolDef
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the tools bound to every agent.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry indexes ts by name. Later tools replace earlier ones with the same name.
func NewRegistry(ts ...Tool) *Registry {
	m := make(map[string]Tool, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
	}
	return &Registry{tools: m}
}

// NewDefaultRegistry builds the search, wikipedia and save tools from cfg.
func NewDefaultRegistry(cfg config.ToolsConfig) *Registry {
	client := &http.Client{Timeout: cfg.Timeout}
	return NewRegistry(
		NewSearchTool(cfg.SearchURL, cfg.SearchMaxResults, client),
		NewWikiTool(cfg.WikiURL, cfg.WikiTopK, cfg.WikiMaxChars, client),
		NewSaveTool(cfg.SaveDir),
	)
}

// Definitions returns tool definitions sorted by name.
func (r *Registry) Definitions() []llm.ToolDef {
	names := r.Names()
	out := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tool named name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Execute(ctx, args)
}

func definition(name, description string, params map[string]any, required ...string) llm.ToolDef {
	return llm.ToolDef{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": params,
			"required":   required,
		},
	}
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// queryArgs accepts {"query": "..."} or a bare JSON string.
type queryArgs struct {
	Query string `json:"query"`
}

func decodeQuery(args json.RawMessage) (string, error) {
	var in queryArgs
	if err := json.Unmarshal(args, &in); err == nil {
		return in.Query, nil
	}
	var s string
	if err := json.Unmarshal(args, &s); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	return s, nil
}
