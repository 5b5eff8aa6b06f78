package agent

import "sync"

// Active is the process-wide agent serving every session.
type Active struct {
	mu   sync.RWMutex
	name string
	exec Executor
}

// NewActive returns an Active holding name and exec.
func NewActive(name string, exec Executor) *Active {
	return &Active{name: name, exec: exec}
}

// Get returns the current name and executor as a consistent pair.
func (a *Active) Get() (string, Executor) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name, a.exec
}

// Name returns the current agent name.
func (a *Active) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// Set swaps in a new agent.
func (a *Active) Set(name string, exec Executor) {
	a.mu.Lock()
	a.name, a.exec = name, exec
	a.mu.Unlock()
}
