package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.BaseBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	cfg.MaintenanceInterval = time.Hour
	cfg.MetricsInterval = time.Hour
	return cfg
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m := NewManager(cfg, logger.NewNop(), opts...)
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func startManager(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Start(context.Background()))
}

func waitForStatus(t *testing.T, m *Manager, id string, status Status) TaskInfo {
	t.Helper()
	var info TaskInfo
	require.Eventually(t, func() bool {
		var err error
		info, err = m.GetTaskStatus(id)
		return err == nil && info.Status == status
	}, 3*time.Second, 5*time.Millisecond, "task %s never reached %s (last: %s)", id, status, info.Status)
	return info
}

func succeed(result interface{}) HandlerFunc {
	return func(context.Context, Args) (interface{}, error) { return result, nil }
}

func blockUntilCancelled(started chan<- struct{}) HandlerFunc {
	return func(ctx context.Context, _ Args) (interface{}, error) {
		if started != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestSubmit_NilHandler(t *testing.T) {
	m := newTestManager(t, testConfig())

	_, err := m.Submit("nil", nil, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	var fn HandlerFunc
	_, err = m.Submit("nil-func", fn, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestSubmit_DefaultsAndPending(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	id, err := m.Submit("score_lead", succeed(nil), Args{"lead_id": 42})
	require.NoError(t, err)

	info, err := m.GetTaskStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, info.Status)
	assert.Equal(t, PriorityNormal, info.Priority)
	assert.Equal(t, 3, info.MaxRetries)
	assert.Equal(t, 300.0, info.TimeoutSeconds)
	assert.Equal(t, 0, info.RetryCount)
	assert.Nil(t, info.StartedAt)
	assert.Nil(t, info.CompletedAt)
	assert.Equal(t, 42, info.Args["lead_id"])
	assert.Equal(t, 1, m.QueueDepth())
}

func TestSubmit_UniqueIDsWithFrozenClock(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManager(t, testConfig(), WithClock(func() time.Time { return frozen }))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := m.Submit("export", succeed(nil), nil)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGetTaskStatus_NotFound(t *testing.T) {
	m := newTestManager(t, testConfig())

	_, err := m.GetTaskStatus("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestStart_IdempotentAndHealthy(t *testing.T) {
	m := newTestManager(t, testConfig())
	assert.False(t, m.IsHealthy())

	startManager(t, m)
	startManager(t, m)

	assert.True(t, m.IsRunning())
	assert.True(t, m.IsHealthy())
	assert.Equal(t, len(Priorities()), m.GetMetrics().WorkersAlive)
}

func TestStart_CancelledContext(t *testing.T) {
	m := newTestManager(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Start(ctx)
	assert.ErrorIs(t, err, ErrManagerStart)
	assert.False(t, m.IsRunning())
}

func TestStop_TwiceIsSafe(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.IsRunning())
	assert.False(t, m.IsHealthy())
}

func TestStop_WithoutStart(t *testing.T) {
	m := newTestManager(t, testConfig())
	assert.NoError(t, m.Stop(context.Background()))
}

func TestRestartAfterStop(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)
	require.NoError(t, m.Stop(context.Background()))
	startManager(t, m)

	id, err := m.Submit("after_restart", succeed("ok"), nil)
	require.NoError(t, err)
	waitForStatus(t, m, id, StatusCompleted)
}

func TestTask_Completes(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	id, err := m.Submit("score_lead", succeed(87), nil, WithPriority(PriorityHigh))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusCompleted)
	assert.Equal(t, 87, info.Result)
	assert.NotNil(t, info.StartedAt)
	assert.NotNil(t, info.CompletedAt)
	assert.Empty(t, info.ErrorMessage)
	assert.True(t, info.IsTerminal())
	assert.Equal(t, int64(1), m.GetMetrics().Completed)
}

func TestSubmitBeforeStart_RunsAfterStart(t *testing.T) {
	m := newTestManager(t, testConfig())

	id, err := m.Submit("early", succeed(nil), nil)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	info, err := m.GetTaskStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, info.Status)

	startManager(t, m)
	waitForStatus(t, m, id, StatusCompleted)
}

func TestRetry_FailsTwiceThenSucceeds(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	var calls atomic.Int32
	h := HandlerFunc(func(context.Context, Args) (interface{}, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("crm unavailable")
		}
		return "delivered", nil
	})

	id, err := m.Submit("b2b_export", h, nil, WithMaxRetries(3))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusCompleted)
	assert.Equal(t, 2, info.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, info.ErrorMessage)
	assert.Equal(t, int64(0), m.GetMetrics().Failed)
}

func TestRetry_Exhausted(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	var calls atomic.Int32
	h := HandlerFunc(func(context.Context, Args) (interface{}, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	id, err := m.Submit("always_fails", h, nil, WithMaxRetries(2))
	require.NoError(t, err)

	var info TaskInfo
	var exceeded atomic.Bool
	require.Eventually(t, func() bool {
		info, err = m.GetTaskStatus(id)
		if err != nil {
			return false
		}
		if info.RetryCount > info.MaxRetries {
			exceeded.Store(true)
		}
		return info.IsTerminal()
	}, 3*time.Second, 2*time.Millisecond)
	assert.False(t, exceeded.Load(), "retry_count exceeded max_retries")

	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, 2, info.RetryCount)
	assert.Equal(t, "boom", info.ErrorMessage)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), m.GetMetrics().Failed)
}

func TestRetry_ZeroRetries(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	id, err := m.Submit("once", HandlerFunc(func(context.Context, Args) (interface{}, error) {
		return nil, errors.New("nope")
	}), nil, WithMaxRetries(0))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Equal(t, 0, info.RetryCount)
	assert.Nil(t, info.NextRetryAt)
}

func TestPermanentError_NotRetried(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	var calls atomic.Int32
	h := HandlerFunc(func(context.Context, Args) (interface{}, error) {
		calls.Add(1)
		return nil, errorsx.WrapPermanent(errors.New("status 422"))
	})

	id, err := m.Submit("b2b_export", h, nil, WithMaxRetries(3))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Equal(t, 0, info.RetryCount)
	assert.Equal(t, "status 422", info.ErrorMessage)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeout_AbandonsBlockingHandler(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	sleeper := HandlerFunc(func(context.Context, Args) (interface{}, error) {
		time.Sleep(5 * time.Second)
		return nil, nil
	})

	submitted := time.Now()
	id, err := m.Submit("slow", sleeper, nil, WithTimeout(100*time.Millisecond), WithMaxRetries(0))
	require.NoError(t, err)
	next, err := m.Submit("quick", succeed(nil), nil)
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Less(t, time.Since(submitted), 2*time.Second)
	assert.Contains(t, info.ErrorMessage, "timeout")

	// the normal-priority worker moved on instead of waiting for the sleeper
	waitForStatus(t, m, next, StatusCompleted)
	assert.GreaterOrEqual(t, m.GetMetrics().AbandonedHandlers, int64(1))
}

func TestTimeout_CooperativeHandler(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	id, err := m.Submit("cooperative", blockUntilCancelled(nil), nil,
		WithTimeout(50*time.Millisecond), WithMaxRetries(0))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Contains(t, info.ErrorMessage, "timeout")
}

func TestPanic_RecordedAsFailure(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	id, err := m.Submit("panics", HandlerFunc(func(context.Context, Args) (interface{}, error) {
		panic("nil lead")
	}), nil, WithMaxRetries(0))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Contains(t, info.ErrorMessage, "panicked")
	assert.Contains(t, info.ErrorMessage, "nil lead")
	assert.True(t, m.IsHealthy())
}

func TestStuckTask_FailedOnceByMaintenance(t *testing.T) {
	cfg := testConfig()
	cfg.MaintenanceInterval = 20 * time.Millisecond
	cfg.StuckThreshold = 50 * time.Millisecond
	m := newTestManager(t, cfg)
	startManager(t, m)

	id, err := m.Submit("hangs", blockUntilCancelled(nil), nil, WithTimeout(time.Minute))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusFailed)
	assert.Contains(t, info.ErrorMessage, "stuck")
	assert.Nil(t, info.NextRetryAt)

	// further sweeps and shutdown must not count it again
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), m.GetMetrics().Failed)

	require.NoError(t, m.Stop(context.Background()))
	info, err = m.GetTaskStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, int64(1), m.GetMetrics().Failed)
}

func TestStop_CancelsOutstandingTasks(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	started := make(chan struct{}, 1)
	running, err := m.Submit("hangs", blockUntilCancelled(started), nil)
	require.NoError(t, err)
	<-started

	var queued []string
	for i := 0; i < 3; i++ {
		id, err := m.Submit("behind", succeed(nil), nil)
		require.NoError(t, err)
		queued = append(queued, id)
	}

	require.NoError(t, m.Stop(context.Background()))

	info, err := m.GetTaskStatus(running)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, info.Status)

	for _, id := range queued {
		info, err := m.GetTaskStatus(id)
		require.NoError(t, err)
		assert.True(t, info.IsTerminal(), "task %s left %s", id, info.Status)
	}
	assert.Equal(t, 0, m.QueueDepth())
}

func TestStop_CancelsScheduledRetry(t *testing.T) {
	cfg := testConfig()
	cfg.BaseBackoff = time.Minute
	cfg.MaxBackoff = time.Minute
	m := newTestManager(t, cfg)
	startManager(t, m)

	id, err := m.Submit("flaky", HandlerFunc(func(context.Context, Args) (interface{}, error) {
		return nil, errors.New("try later")
	}), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, _ := m.GetTaskStatus(id)
		return info.Status == StatusFailed && info.NextRetryAt != nil
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))

	info, err := m.GetTaskStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, info.Status)
	assert.Equal(t, 1, info.RetryCount)
}

func TestPriorityQueue_FIFO(t *testing.T) {
	m := newTestManager(t, testConfig())

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		n := i
		_, err := m.Submit("ordered", HandlerFunc(func(context.Context, Args) (interface{}, error) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil, nil
		}), nil, WithPriority(PriorityHigh))
		require.NoError(t, err)
	}

	startManager(t, m)
	require.Eventually(t, func() bool {
		return m.GetMetrics().Completed == 5
	}, 3*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestMetrics_CountsAddUp(t *testing.T) {
	m := newTestManager(t, testConfig())

	const n = 20
	for i := 0; i < n; i++ {
		p := Priorities()[i%len(Priorities())]
		_, err := m.Submit(fmt.Sprintf("kind_%d", i%3), succeed(nil), nil, WithPriority(p))
		require.NoError(t, err)
	}

	snap := m.GetMetrics()
	queued := 0
	for _, d := range snap.QueueDepth {
		queued += d
	}
	assert.Equal(t, n, queued)
	assert.Equal(t, 5, snap.QueueDepth[PriorityLow])
	assert.Equal(t, n, snap.Total)
	assert.Equal(t, n, snap.Pending)
	assert.Equal(t, []string{"kind_0", "kind_1", "kind_2"}, snap.TaskNames)

	startManager(t, m)
	var mismatches atomic.Int32
	require.Eventually(t, func() bool {
		s := m.GetMetrics()
		sum := 0
		for _, c := range s.StatusCounts {
			sum += c
		}
		depth := 0
		for _, d := range s.QueueDepth {
			depth += d
		}
		if sum != n || s.Total != n || depth > s.Pending {
			mismatches.Add(1)
		}
		return s.Completed == n
	}, 3*time.Second, time.Millisecond)
	assert.Zero(t, mismatches.Load())

	snap = m.GetMetrics()
	assert.Equal(t, 100.0, snap.SuccessRate)
	assert.Greater(t, snap.UptimeSeconds, 0.0)
	assert.Greater(t, snap.TasksPerHour, 0.0)
	assert.Equal(t, int64(n), snap.Submitted)
}

type capturingArchiver struct {
	mu    sync.Mutex
	tasks []TaskInfo
}

func (a *capturingArchiver) Archive(_ context.Context, tasks []TaskInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, tasks...)
	return nil
}

func TestMaintenance_EvictsOnlyExpiredTerminalTasks(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	archiver := &capturingArchiver{}

	m := newTestManager(t, testConfig(), WithClock(clock), WithArchiver(archiver))
	startManager(t, m)

	old, err := m.Submit("old", succeed(nil), nil)
	require.NoError(t, err)
	waitForStatus(t, m, old, StatusCompleted)

	offset.Store(int64(23 * time.Hour))
	young, err := m.Submit("young", succeed(nil), nil)
	require.NoError(t, err)
	waitForStatus(t, m, young, StatusCompleted)

	offset.Store(int64(25 * time.Hour))
	report := m.runMaintenance(context.Background())
	assert.Equal(t, 1, report.Evicted)
	assert.Equal(t, 0, report.Stuck)

	_, err = m.GetTaskStatus(old)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	all := m.GetAllTasks()
	require.Len(t, all, 1)
	assert.Equal(t, young, all[0].ID)

	require.Len(t, archiver.tasks, 1)
	assert.Equal(t, old, archiver.tasks[0].ID)

	// lifetime counters survive eviction
	assert.Equal(t, int64(2), m.GetMetrics().Completed)
}

type flakyArchiver struct {
	capturingArchiver
	fail atomic.Bool
}

func (a *flakyArchiver) Archive(ctx context.Context, tasks []TaskInfo) error {
	if a.fail.Load() {
		return errors.New("postgres unavailable")
	}
	return a.capturingArchiver.Archive(ctx, tasks)
}

func TestMaintenance_ArchiveFailureKeepsTasks(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	archiver := &flakyArchiver{}
	archiver.fail.Store(true)

	m := newTestManager(t, testConfig(), WithClock(clock), WithArchiver(archiver))
	startManager(t, m)

	old, err := m.Submit("old", succeed(nil), nil)
	require.NoError(t, err)
	waitForStatus(t, m, old, StatusCompleted)

	offset.Store(int64(25 * time.Hour))
	report := m.runMaintenance(context.Background())
	assert.Equal(t, 0, report.Evicted)
	assert.Equal(t, 1, report.ArchiveFailed)

	info, err := m.GetTaskStatus(old)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, info.Status)

	archiver.fail.Store(false)
	report = m.runMaintenance(context.Background())
	assert.Equal(t, 1, report.Evicted)
	assert.Equal(t, 0, report.ArchiveFailed)

	_, err = m.GetTaskStatus(old)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	require.Len(t, archiver.tasks, 1)
	assert.Equal(t, old, archiver.tasks[0].ID)
}

func TestMaintenance_RespawnsDeadWorker(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)
	require.True(t, m.IsHealthy())

	m.mu.Lock()
	stopLow := m.workerCancels[PriorityLow]
	m.mu.Unlock()
	stopLow()

	require.Eventually(t, func() bool { return m.alive[PriorityLow].Load() == 0 }, time.Second, time.Millisecond)
	assert.False(t, m.IsHealthy())
	assert.True(t, m.IsRunning())

	report := m.runMaintenance(context.Background())
	assert.Equal(t, len(Priorities())-1, report.WorkersAlive)
	assert.Equal(t, 1, report.Respawned)

	require.Eventually(t, m.IsHealthy, time.Second, time.Millisecond)

	id, err := m.Submit("after_respawn", succeed("ok"), nil, WithPriority(PriorityLow))
	require.NoError(t, err)
	waitForStatus(t, m, id, StatusCompleted)

	report = m.runMaintenance(context.Background())
	assert.Equal(t, len(Priorities()), report.WorkersAlive)
	assert.Equal(t, 0, report.Respawned)
}

func TestMaintenance_NoRespawnAfterStop(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)
	require.NoError(t, m.Stop(context.Background()))

	report := m.runMaintenance(context.Background())
	assert.Equal(t, 0, report.WorkersAlive)
	assert.Equal(t, 0, report.Respawned)
}

func TestMetrics_TasksPerHourSpansRestarts(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var offset atomic.Int64
	clock := func() time.Time { return base.Add(time.Duration(offset.Load())) }

	m := newTestManager(t, testConfig(), WithClock(clock))
	startManager(t, m)

	for i := 0; i < 2; i++ {
		id, err := m.Submit("refresh", succeed(nil), nil)
		require.NoError(t, err)
		waitForStatus(t, m, id, StatusCompleted)
	}

	offset.Store(int64(time.Hour))
	require.NoError(t, m.Stop(context.Background()))
	snap := m.GetMetrics()
	assert.Zero(t, snap.UptimeSeconds)
	assert.InDelta(t, 2.0, snap.TasksPerHour, 1e-9)

	startManager(t, m)
	snap = m.GetMetrics()
	assert.Zero(t, snap.UptimeSeconds)
	assert.InDelta(t, 2.0, snap.TasksPerHour, 1e-9)

	offset.Store(int64(2 * time.Hour))
	snap = m.GetMetrics()
	assert.InDelta(t, 3600.0, snap.UptimeSeconds, 1e-9)
	assert.InDelta(t, 1.0, snap.TasksPerHour, 1e-9)
}

func TestMaintenance_KeepsPendingAndRunning(t *testing.T) {
	var offset atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(offset.Load())) }
	m := newTestManager(t, testConfig(), WithClock(clock))

	id, err := m.Submit("waiting", succeed(nil), nil)
	require.NoError(t, err)

	offset.Store(int64(48 * time.Hour))
	report := m.runMaintenance(context.Background())
	assert.Equal(t, 0, report.Evicted)

	_, err = m.GetTaskStatus(id)
	assert.NoError(t, err)
}

func TestSubmitNamed(t *testing.T) {
	m := newTestManager(t, testConfig())
	startManager(t, m)

	_, err := m.SubmitNamed("unknown", nil)
	assert.ErrorIs(t, err, ErrUnknownTask)

	require.NoError(t, m.Register("analytics_refresh", HandlerFunc(func(_ context.Context, args Args) (interface{}, error) {
		return args.String("scope"), nil
	})))
	assert.Equal(t, []string{"analytics_refresh"}, m.RegisteredNames())

	id, err := m.SubmitNamed("analytics_refresh", Args{"scope": "daily"}, WithPriority(PriorityLow))
	require.NoError(t, err)

	info := waitForStatus(t, m, id, StatusCompleted)
	assert.Equal(t, "daily", info.Result)
	assert.Equal(t, PriorityLow, info.Priority)
}

func TestMiddleware_SeesExecution(t *testing.T) {
	m := newTestManager(t, testConfig())

	seen := make(chan Execution, 1)
	m.Use(func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			exec, ok := ExecutionFromContext(ctx)
			if ok {
				seen <- exec
			}
			return next.Execute(ctx, args)
		})
	})
	m.Use(TracingMiddleware())
	m.Use(LoggingMiddleware(logger.NewNop()))
	startManager(t, m)

	id, err := m.Submit("traced", succeed(nil), nil, WithPriority(PriorityCritical))
	require.NoError(t, err)

	select {
	case exec := <-seen:
		assert.Equal(t, id, exec.TaskID)
		assert.Equal(t, "traced", exec.Name)
		assert.Equal(t, PriorityCritical, exec.Priority)
		assert.Equal(t, 1, exec.Attempt)
	case <-time.After(3 * time.Second):
		t.Fatal("middleware never ran")
	}
	waitForStatus(t, m, id, StatusCompleted)

	stats := m.GetMetrics().Names["traced"]
	assert.Equal(t, int64(1), stats.Succeeded)
}

func TestGetAllTasks_OrderedByCreation(t *testing.T) {
	m := newTestManager(t, testConfig())

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Submit("ordered", succeed(nil), nil)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(time.Millisecond)
	}

	all := m.GetAllTasks()
	require.Len(t, all, 3)
	for i, info := range all {
		assert.Equal(t, ids[i], info.ID)
	}
}

func TestMetricsLoop_PublishesAndSurvivesSinkErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MetricsInterval = 20 * time.Millisecond

	var publishes atomic.Int32
	sink := SinkFunc(func(_ context.Context, snap MetricsSnapshot) error {
		publishes.Add(1)
		return errors.New("sink offline")
	})
	m := newTestManager(t, cfg, WithSink(sink))
	startManager(t, m)

	require.Eventually(t, func() bool { return publishes.Load() >= 2 }, 3*time.Second, 5*time.Millisecond)

	id, err := m.Submit("after_sink_error", succeed(nil), nil)
	require.NoError(t, err)
	waitForStatus(t, m, id, StatusCompleted)
}

func TestPublishMetrics_FlatShape(t *testing.T) {
	var got map[string]interface{}
	m := newTestManager(t, testConfig(), WithSink(SinkFunc(func(_ context.Context, snap MetricsSnapshot) error {
		got = snap.Flatten()
		return nil
	})), WithInstanceID("instance-1"))

	_, err := m.Submit("score_lead", succeed(nil), nil)
	require.NoError(t, err)
	require.NoError(t, m.PublishMetrics(context.Background()))

	for _, key := range []string{"task_names", "pending", "running", "completed", "failed", "uptime_seconds", "tasks_per_hour"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, "score_lead", got["task_names"])
	assert.Equal(t, 1, got["pending"])
	assert.Equal(t, 1, got["queue_normal"])
	assert.Equal(t, "instance-1", got["instance_id"])
}
