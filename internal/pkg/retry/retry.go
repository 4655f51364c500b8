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

// Backoff returns BaseDelay * 2^n, capped at MaxDelay when MaxDelay > 0.
// n is the number of retries already granted, so the first retry waits 2*BaseDelay.
func (p Policy) Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	raw := float64(p.BaseDelay) * math.Pow(2, float64(n))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}
	delay := time.Duration(math.MaxInt64)
	if raw < math.MaxInt64 {
		delay = time.Duration(raw)
	}
	if p.Jitter {
		j := rand.Float64()*0.4 + 0.8 // [0.8, 1.2)
		delay = time.Duration(float64(delay) * j)
	}
	return delay
}

func (p Policy) nextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	return p.Backoff(attempt - 1)
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
		timer := time.NewTimer(policy.nextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
