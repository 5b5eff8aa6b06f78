package agent

import (
	"context"
)

// Executor defines the interface for a runnable agent.
// ToolExecutor is the production implementation.
type Executor interface {
	// Invoke answers in.Query given the prior session turns, calling tools as needed.
	Invoke(ctx context.Context, in Input) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, in Input) (*Result, error)

// Invoke calls f.
func (f ExecutorFunc) Invoke(ctx context.Context, in Input) (*Result, error) {
	return f(ctx, in)
}

// Ensure ToolExecutor implements Executor.
var _ Executor = (*ToolExecutor)(nil)
