package syncer

import (
	"context"
	"math/rand"
	"time"
)

const (
	// defaultMaxAttempts is the number of tries before a transient adapter
	// failure is counted as an error.
	defaultMaxAttempts = 3

	// baseDelay is the starting backoff interval (before jitter).
	baseDelay = 500 * time.Millisecond

	// maxDelay caps the backoff interval.
	maxDelay = 5 * time.Second
)

// BackoffPolicy computes the delay before retry number attempt (0-based).
type BackoffPolicy func(attempt int) time.Duration

// DefaultBackoff applies exponential growth with 50-100 % jitter.
func DefaultBackoff(attempt int) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	// Jitter: uniform in [delay/2, delay).
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}

// Sleeper abstracts the retry delay so tests can observe it without real
// timers.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits on the wall clock, honouring context cancellation.
type RealSleeper struct{}

// Sleep blocks for d or until ctx is cancelled.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
