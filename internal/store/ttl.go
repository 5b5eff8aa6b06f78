package store

import (
	"context"
	"log/slog"
	"time"
)

// CleanupCallback is called after a sweep that removed at least one session.
type CleanupCallback func(removed int64)

// StartTTLWorker runs a background goroutine that periodically removes
// sessions idle longer than ttl. It returns immediately; the worker stops
// when ctx is cancelled. A non-positive ttl disables the worker.
func StartTTLWorker(ctx context.Context, repo Repository, ttl, interval time.Duration, onCleanup CleanupCallback) {
	if ttl <= 0 {
		slog.Info("TTL worker disabled", "ttl", ttl)
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, ttl, onCleanup)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo Repository, ttl time.Duration, onCleanup CleanupCallback) {
	removed, err := repo.CleanupExpiredSessions(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("TTL worker: context canceled during sweep", "error", err)
			return
		}
		slog.Error("TTL worker failed to remove expired sessions", "error", err)
		return
	}
	if removed == 0 {
		return
	}
	slog.Info("TTL worker removed expired sessions", "count", removed)
	if onCleanup != nil {
		onCleanup(removed)
	}
}
