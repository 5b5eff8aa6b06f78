// Package store provides chat history persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/agentchat/internal/config"
	"github.com/ashureev/agentchat/internal/domain"
)

// Repository defines the interface for persisting per-session chat history.
type Repository interface {
	// History returns the messages of a session in insertion order.
	// An unknown session yields an empty history.
	History(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Append adds messages to the end of a session, creating it if needed.
	Append(ctx context.Context, sessionID string, msgs ...domain.Message) error

	// SessionCount returns the number of sessions currently held.
	SessionCount(ctx context.Context) (int, error)

	// CleanupExpiredSessions removes sessions idle longer than ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// New opens the repository selected by cfg.Store.
func New(cfg config.SessionConfig) (Repository, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemory(cfg.MaxSessions), nil
	case "sqlite":
		s, err := NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Store)
	}
}
