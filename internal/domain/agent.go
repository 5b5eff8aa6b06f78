// Package domain contains core domain types for the chat service.
package domain

// AgentDefinition is a named persona: a system prompt bound at build time to
// the fixed tool set.
type AgentDefinition struct {
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
}

// ParsedResponse is the structured reply the agents are asked to produce.
// It is advisory: replies that do not match it are still relayed verbatim.
type ParsedResponse struct {
	Query        string   `json:"query"`
	Topic        string   `json:"topic"`
	TLDR         string   `json:"tldr"`
	Sources      []string `json:"sources"`
	ToolsUsed    []string `json:"tools_used"`
	ReplyMessage string   `json:"reply_message"`
}
