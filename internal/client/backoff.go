package client

import (
	"context"
	"time"
)

// Reconnect policy.
const (
	BaseDelay   = 1 * time.Second
	MaxDelay    = 30 * time.Second
	MaxAttempts = 10
)

// Backoff returns the delay before reconnect attempt n (0-based):
// BaseDelay doubled n times, capped at MaxDelay.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= MaxDelay {
			return MaxDelay
		}
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real-timer Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
