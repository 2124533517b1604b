package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
	MaxAttempts int
}

func ExponentialBackoff(base, max time.Duration, jitter bool, maxAttempts int) Policy {
	return Policy{
		BaseDelay:   base,
		MaxDelay:    max,
		Jitter:      jitter,
		MaxAttempts: maxAttempts,
	}
}

// Delay returns the wait before the given 1-based attempt: 2^(attempt-1) * base,
// capped at MaxDelay when it is set. Without a cap the result saturates at the
// largest representable duration.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}
	if p.Jitter {
		raw *= rand.Float64()*0.4 + 0.8 // [0.8, 1.2)
	}
	if raw >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(raw)
}

// Do runs fn with retry upon error while isRetryable(err) is true
func Do[T any](ctx context.Context, policy Policy, fn func(context.Context) (T, error), isRetryable func(error) bool) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; policy.MaxAttempts == 0 || attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if isRetryable != nil && !isRetryable(err) {
			break
		}
		if policy.MaxAttempts != 0 && attempt == policy.MaxAttempts {
			break
		}
		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
