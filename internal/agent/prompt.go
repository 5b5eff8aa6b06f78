package agent

import (
	"encoding/json"
	"strings"

	"github.com/ashureev/agentchat/internal/domain"
)

const conversationSuffix = " Carry on a conversation naturally."

const structuredInstructions = "\nWrap the output in this format and provide no other text\n"

// structuredSchema describes domain.ParsedResponse for the model.
var structuredSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query":         map[string]any{"type": "string"},
		"topic":         map[string]any{"type": "string"},
		"tldr":          map[string]any{"type": "string"},
		"sources":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"tools_used":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"reply_message": map[string]any{"type": "string"},
	},
	"required": []string{"query", "topic", "tldr", "sources", "tools_used", "reply_message"},
}

// BuildSystemPrompt appends the conversation suffix to the registry prompt,
// followed by the response schema when structured output is requested.
func BuildSystemPrompt(prompt string, structured bool) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(conversationSuffix)
	if structured {
		schema, _ := json.Marshal(structuredSchema)
		b.WriteString(structuredInstructions)
		b.Write(schema)
	}
	return b.String()
}

// parseStructured extracts a ParsedResponse from model output. It tolerates
// code fences and surrounding prose and returns nil when nothing usable is found.
func parseStructured(output string) *domain.ParsedResponse {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return nil
	}
	var parsed domain.ParsedResponse
	if err := json.Unmarshal([]byte(output[start:end+1]), &parsed); err != nil {
		return nil
	}
	if parsed.ReplyMessage == "" && parsed.TLDR == "" && parsed.Topic == "" {
		return nil
	}
	return &parsed
}
