package llm

import (
	"context"
	"fmt"
	"strings"
)

// EchoModel answers with the last user message and never calls tools.
// It lets the server run without credentials.
type EchoModel struct {
	Prefix string
}

// NewEchoModel returns an EchoModel; a blank prefix becomes "Echo:".
func NewEchoModel(prefix string) *EchoModel {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Echo:"
	}
	return &EchoModel{Prefix: prefix}
}

// Name returns "echo".
func (m *EchoModel) Name() string {
	return "echo"
}

// Chat echoes the most recent non-empty user message.
func (m *EchoModel) Chat(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	last := "<empty prompt>"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role == RoleUser && strings.TrimSpace(msg.Content) != "" {
			last = strings.TrimSpace(msg.Content)
			break
		}
	}
	return Response{Content: fmt.Sprintf("%s %s", m.Prefix, last)}, nil
}
