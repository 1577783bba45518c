package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/slidewise/modelgate/internal/aierrors"
)

// Policy controls backoff and classification for Do.
type Policy struct {
	// MaxAttempts bounds the total invocations, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// Multiplier grows the delay each attempt. Defaults to 2.
	Multiplier float64
	// MaxDelay caps the computed delay before jitter.
	MaxDelay time.Duration
	// JitterFraction adds uniform random jitter up to this fraction of the
	// delay. Defaults to 0.3.
	JitterFraction float64
	// ShouldRetry classifies failures. Defaults to aierrors.IsRetryable.
	ShouldRetry func(error) bool
	// OnRetry fires before each backoff sleep.
	OnRetry func(attempt int, err error)
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      200 * time.Millisecond,
		Multiplier:     2,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.3,
	}
}

// Do runs op, retrying classified-retryable failures with exponential backoff
// and jitter. The last error is returned unmodified so callers can still
// pattern-match on its kind. The backoff sleep respects ctx cancellation.
func Do[T any](ctx context.Context, policy Policy, op func() (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	shouldRetry := policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = aierrors.IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) || attempt == attempts {
			return zero, lastErr
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}

		if err := sleepWithContext(ctx, policy.delay(attempt)); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// delay computes min(MaxDelay, base * multiplier^(attempt-1)) plus uniform
// jitter in [0, JitterFraction*delay).
func (p Policy) delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	jitterFraction := p.JitterFraction
	if jitterFraction <= 0 {
		jitterFraction = 0.3
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			delay = float64(p.MaxDelay)
			break
		}
	}

	jitter := rand.Float64() * jitterFraction * delay

	return time.Duration(delay + jitter)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
