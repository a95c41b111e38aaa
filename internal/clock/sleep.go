// Package clock provides helpers for time-related operations.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff doubles the delay after every consecutive failure, capped at maxDelay.
type Backoff struct {
	Initial  time.Duration
	MaxDelay time.Duration

	failures int
}

// Next records a failure and returns how long to wait before retrying.
func (b *Backoff) Next() time.Duration {
	d := b.Initial
	for i := 0; i < b.failures && d < b.MaxDelay; i++ {
		d *= 2
	}
	if d > b.MaxDelay {
		d = b.MaxDelay
	}
	b.failures++
	return d
}

// Reset forgets previous failures.
func (b *Backoff) Reset() {
	b.failures = 0
}
