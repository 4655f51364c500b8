package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submission struct {
	name string
	args worker.Args
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submission
	err   error
}

func (f *fakeSubmitter) SubmitNamed(name string, args worker.Args, _ ...worker.SubmitOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, submission{name: name, args: args})
	return name + "-id", nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(t *testing.T, sub Submitter) *Scheduler {
	t.Helper()
	s, err := New(sub, "UTC", logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestAdd_Validation(t *testing.T) {
	s := newTestScheduler(t, &fakeSubmitter{})

	err := s.Add(Entry{Name: "analytics_refresh", Schedule: "not a cron"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	err = s.Add(Entry{Schedule: "@hourly"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	err = s.Add(Entry{Name: "analytics_refresh", Schedule: "@hourly", Priority: "urgent"})
	assert.Error(t, err)

	require.NoError(t, s.Add(Entry{Name: "analytics_refresh", Schedule: "*/5 * * * *"}))
	err = s.Add(Entry{Name: "analytics_refresh", Schedule: "@daily"})
	assert.ErrorIs(t, err, ErrEntryAlreadyExists)
}

func TestTrigger_SubmitsWithArgsCopy(t *testing.T) {
	sub := &fakeSubmitter{}
	s := newTestScheduler(t, sub)
	require.NoError(t, s.Add(Entry{
		Name:     "archive_purge",
		Schedule: "@daily",
		Priority: "low",
		Args:     map[string]interface{}{"older_than_days": 30},
	}))

	id, err := s.Trigger("archive_purge")
	require.NoError(t, err)
	assert.Equal(t, "archive_purge-id", id)

	require.Len(t, sub.calls, 1)
	assert.Equal(t, 30, sub.calls[0].args["older_than_days"])

	sub.calls[0].args["older_than_days"] = 1
	_, err = s.Trigger("archive_purge")
	require.NoError(t, err)
	assert.Equal(t, 30, sub.calls[1].args["older_than_days"])

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Submitted)
	assert.Equal(t, "low", entries[0].Priority)
	assert.Equal(t, "archive_purge-id", entries[0].LastTaskID)
}

func TestTrigger_RecordsFailures(t *testing.T) {
	boom := errors.New("unknown task")
	s := newTestScheduler(t, &fakeSubmitter{err: boom})
	require.NoError(t, s.Add(Entry{Name: "missing", Schedule: "@hourly"}))

	_, err := s.Trigger("missing")
	assert.ErrorIs(t, err, boom)

	entries := s.Entries()
	assert.Equal(t, int64(1), entries[0].Failed)
	assert.Equal(t, "unknown task", entries[0].LastError)

	_, err = s.Trigger("nope")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRemove(t *testing.T) {
	s := newTestScheduler(t, &fakeSubmitter{})
	require.NoError(t, s.Add(Entry{Name: "a", Schedule: "@hourly"}))

	require.NoError(t, s.Remove("a"))
	assert.Empty(t, s.Entries())
	assert.ErrorIs(t, s.Remove("a"), ErrEntryNotFound)
}

func TestStartStop_FiresOnSchedule(t *testing.T) {
	sub := &fakeSubmitter{}
	s := newTestScheduler(t, sub)
	require.NoError(t, s.Add(Entry{Name: "analytics_refresh", Schedule: "@every 1s"}))

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrSchedulerAlreadyStarted)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.NotNil(t, entries[0].NextRun)

	assert.Eventually(t, func() bool { return sub.count() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New(&fakeSubmitter{}, "Mars/Olympus", logger.NewNop())
	assert.Error(t, err)
}
