package storage

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	maxRetries = 3
	baseDelay  = 50 * time.Millisecond
)

// isConflict reports SQLITE_BUSY / "database is locked" errors that warrant a retry.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs op with exponential backoff on SQLite lock conflicts: 50ms, 100ms.
func withRetry(ctx context.Context, name string, op func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil || !isConflict(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
