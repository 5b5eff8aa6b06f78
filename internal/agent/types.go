// Package agent builds agent executors and serves the chat API on top of them.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/agentchat/internal/domain"
)

// Input is what an executor receives for one turn. ChatHistory holds the
// prior turns of the session and never includes Query itself.
type Input struct {
	Query       string
	ChatHistory []domain.Message
}

// Step records one tool invocation made while answering.
type Step struct {
	Tool        string `json:"tool"`
	Arguments   string `json:"arguments"`
	Observation string `json:"observation"`
}

// Result is the raw executor output for one turn.
type Result struct {
	Query     string                 `json:"query"`
	Output    string                 `json:"output"`
	ToolsUsed []string               `json:"tools_used,omitempty"`
	Steps     []Step                 `json:"intermediate_steps,omitempty"`
	Parsed    *domain.ParsedResponse `json:"parsed,omitempty"`
}

// String renders the whole result as JSON.
func (r *Result) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	return string(data)
}

// Reply is the text shown to the user and stored in history. It is Output
// as-is, even when the model answered with nothing; the admin log keeps the
// full rendering via String.
func (r *Result) Reply() string {
	return r.Output
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
	RequestID string `json:"-"`
}

// ChatResponse is the successful reply to POST /chat.
type ChatResponse struct {
	Response  string `json:"response"`
	AgentUsed string `json:"agent_used"`
}

// SetAgentRequest is the body of POST /set_agent.
type SetAgentRequest struct {
	AgentName string `json:"agent_name"`
}

var (
	// ErrEmptyQuery is returned for a chat request without a query.
	ErrEmptyQuery = errors.New("no query provided")
	// ErrUnknownAgent is returned when switching to a name the registry does not hold.
	ErrUnknownAgent = errors.New("invalid agent name")
)

// InvocationError wraps a failure raised while running the active executor.
type InvocationError struct {
	Agent string
	Err   error
}

func (e *InvocationError) Error() string { return e.Err.Error() }

func (e *InvocationError) Unwrap() error { return e.Err }
