package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_ExponentialWithCap(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 60 * time.Second}

	assert.Equal(t, 1*time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 32*time.Second, p.Backoff(5))
	assert.Equal(t, 60*time.Second, p.Backoff(6))
	assert.Equal(t, 60*time.Second, p.Backoff(500))
}

func TestBackoff_Jitter(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: true}
	for i := 0; i < 20; i++ {
		d := p.Backoff(1)
		assert.GreaterOrEqual(t, d, 160*time.Millisecond)
		assert.Less(t, d, 240*time.Millisecond)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	p := ExponentialBackoff(time.Millisecond, 5*time.Millisecond, false, 5)

	res, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	p := ExponentialBackoff(time.Millisecond, time.Millisecond, false, 5)

	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, fatal
	}, func(err error) bool { return !errors.Is(err, fatal) })

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	p := ExponentialBackoff(time.Millisecond, time.Millisecond, false, 3)

	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, nil)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Policy{BaseDelay: time.Second}, func(context.Context) (int, error) {
		return 1, nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
