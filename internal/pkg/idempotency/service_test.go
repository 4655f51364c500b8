package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Execute_ReplaysResult(t *testing.T) {
	svc := NewService(NewMemoryStorage(), time.Minute)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (string, error) {
		calls++
		return "b2b_export-1-1", nil
	}

	result, replayed, err := svc.Execute(ctx, "req-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "b2b_export-1-1", result)
	assert.False(t, replayed)

	result, replayed, err = svc.Execute(ctx, "req-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "b2b_export-1-1", result)
	assert.True(t, replayed)
	assert.Equal(t, 1, calls)
}

func TestService_Execute_ErrorReleasesKey(t *testing.T) {
	svc := NewService(NewMemoryStorage(), time.Minute)
	ctx := context.Background()

	boom := errors.New("unknown task")
	_, _, err := svc.Execute(ctx, "req-2", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	result, replayed, err := svc.Execute(ctx, "req-2", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "ok", result)
}

func TestService_Execute_InvalidKey(t *testing.T) {
	svc := NewService(NewMemoryStorage(), 0)
	fn := func(context.Context) (string, error) { return "x", nil }

	_, _, err := svc.Execute(context.Background(), "", fn)
	assert.ErrorIs(t, err, ErrInvalidKey)

	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'k'
	}
	_, _, err = svc.Execute(context.Background(), string(long), fn)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestService_Execute_Concurrent(t *testing.T) {
	svc := NewService(NewMemoryStorage(), time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "id", nil
	}

	const n = 10
	var wg sync.WaitGroup
	var busy atomic.Int32
	var started sync.WaitGroup
	started.Add(1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		started.Done()
		_, _, _ = svc.Execute(ctx, "req-3", fn)
	}()
	started.Wait()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Execute(ctx, "req-3", fn); errors.Is(err, ErrAlreadyProcessing) {
				busy.Add(1)
			}
		}()
	}
	// the losers return immediately
	require.Eventually(t, func() bool { return busy.Load() == n }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryStorage_Expiry(t *testing.T) {
	s := NewMemoryStorage()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := s.TryMarkProcessing(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryMarkProcessing(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	rec, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err = s.TryMarkProcessing(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, err = s.TryMarkProcessing(ctx, "other", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}
