package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64 // 0.0-1.0, fraction of the delay added or removed at random
}

// HostAPIBackoff is used for idempotent host CRM reads.
//
// Retry sequence (±10% jitter):
//   - Attempt 0: ~250ms
//   - Attempt 1: ~500ms
//   - Attempt 2: ~1s
//   - Attempt 3+: ~2s (capped)
func HostAPIBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay returns BaseDelay * Multiplier^attempt ± jitter, capped at MaxDelay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	jitterAmount := delay * eb.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterAmount

	finalDelay := time.Duration(delay + jitter)
	if finalDelay < 0 {
		finalDelay = eb.BaseDelay
	}
	return finalDelay
}

// FixedBackoff waits the same delay between every attempt
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}

// Retry calls fn up to maxAttempts times, sleeping per strategy between
// attempts while retryable(err) holds. It stops early when ctx is done and
// returns the last error from fn.
func Retry(ctx context.Context, strategy BackoffStrategy, maxAttempts int, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}

		timer := time.NewTimer(strategy.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
