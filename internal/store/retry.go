package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Write retry tuning for lock contention between connections sharing a
// database file (the reaper and the MCP server in separate processes).
const (
	maxWriteAttempts = 4
	baseWriteDelay   = 10 * time.Millisecond
	maxWriteDelay    = 200 * time.Millisecond
)

// isBusy reports whether err is a transient lock error worth retrying.
func isBusy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "sqlite_busy", "database table is locked"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// writeBackoff returns the exponential delay before retry attempt (0-based), capped.
func writeBackoff(attempt int) time.Duration {
	delay := baseWriteDelay << attempt
	if delay > maxWriteDelay || delay <= 0 {
		return maxWriteDelay
	}
	return delay
}

// withWriteRetry runs fn, retrying busy errors with backoff until the attempt
// budget or the context runs out.
func withWriteRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err = fn(); !isBusy(err) {
			return err
		}
		select {
		case <-time.After(writeBackoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
