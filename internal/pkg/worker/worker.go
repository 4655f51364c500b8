package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/logger"

	"go.uber.org/zap"
)

// spawnWorker starts the loop serving one priority queue under its own
// cancellable context, replacing any previous cancel for that priority
func (m *Manager) spawnWorker(ctx context.Context, p Priority, ready chan<- struct{}) {
	workerCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.workerCancels[p] = cancel
	m.mu.Unlock()

	m.loops.Add(1)
	go func() {
		defer cancel()
		m.workerLoop(workerCtx, p, ready)
	}()
}

func (m *Manager) workerLoop(ctx context.Context, p Priority, ready chan<- struct{}) {
	defer m.loops.Done()

	m.alive[p].Add(1)
	defer m.alive[p].Add(-1)

	log := m.log.With(zap.Stringer("priority", p))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker exited unexpectedly", zap.Any("panic", r))
		}
	}()
	log.Info("Worker started")
	signalReady(ready)

	q := m.queues[p]
	for {
		if ctx.Err() != nil {
			log.Info("Worker stopping: context cancelled")
			return
		}

		t, ok := q.Pop(ctx, m.cfg.PollInterval)
		if !ok {
			continue
		}

		m.safeProcess(ctx, t, log)
	}
}

func signalReady(ready chan<- struct{}) {
	if ready == nil {
		return
	}
	select {
	case ready <- struct{}{}:
	default:
	}
}

// safeProcess keeps the worker loop alive when bookkeeping panics
func (m *Manager) safeProcess(ctx context.Context, t *task, log *logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker recovered from panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	m.process(ctx, t, log)
}

// process runs one attempt of t and records the outcome
func (m *Manager) process(ctx context.Context, t *task, log *logger.Logger) {
	m.mu.Lock()
	if t.status != StatusPending {
		// cancelled while queued
		m.mu.Unlock()
		return
	}
	if ctx.Err() != nil {
		// popped during shutdown; put it back so Stop cancels it with the rest
		m.queues[t.priority].Push(t)
		m.mu.Unlock()
		return
	}

	now := m.now()
	t.status = StatusRunning
	t.startedAt = &now
	t.finishedAt = nil
	t.errMessage = ""
	t.attempt++

	attempt := t.attempt
	exec := Execution{
		TaskID:     t.id,
		Name:       t.name,
		Priority:   t.priority,
		Attempt:    attempt,
		RetryCount: t.retryCount,
	}
	handler := t.handler
	args := t.args.clone()
	timeout := t.timeout
	m.mu.Unlock()

	taskLog := log.ForTask(exec.TaskID, exec.Name).With(zap.Int("attempt", attempt))
	taskLog.Debug("Task started")

	result, err := m.execute(ctx, exec, m.wrap(handler), args, timeout, taskLog)
	if errors.Is(err, errInterrupted) {
		taskLog.Info("Task interrupted by shutdown")
		return
	}

	m.finish(ctx, t, attempt, result, err, taskLog)
}

type outcome struct {
	result interface{}
	err    error
}

// execute runs the handler on its own goroutine so the worker can walk away
// at the deadline. An abandoned goroutine keeps running until the handler
// returns; its result is dropped.
func (m *Manager) execute(ctx context.Context, exec Execution, h Handler, args Args, timeout time.Duration, log *logger.Logger) (interface{}, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	execCtx = withExecution(execCtx, exec)

	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				log.Error("Task handler panicked",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
				out = outcome{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
			}
			done <- out
		}()
		res, err := h.Execute(execCtx, args)
		out = outcome{result: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-execCtx.Done():
		select {
		case out = <-done:
		default:
			m.abandon(done, log)
			if ctx.Err() != nil {
				return nil, errInterrupted
			}
			return nil, timeoutError(timeout)
		}
	}

	// a cooperative handler usually returns ctx.Err() right after the deadline
	if out.err != nil && execCtx.Err() != nil {
		if ctx.Err() != nil {
			return nil, errInterrupted
		}
		return nil, timeoutError(timeout)
	}
	return out.result, out.err
}

func (m *Manager) abandon(done <-chan outcome, log *logger.Logger) {
	n := m.abandoned.Add(1)
	log.Warn("Task handler abandoned after deadline", zap.Int64("abandoned_handlers", n))
	go func() {
		<-done
		m.abandoned.Add(-1)
	}()
}

// finish records the attempt outcome unless the record moved on without us
func (m *Manager) finish(ctx context.Context, t *task, attempt int, result interface{}, err error, log *logger.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.status != StatusRunning || t.attempt != attempt {
		log.Warn("Discarding result of superseded attempt", zap.String("status", string(t.status)))
		return
	}

	now := m.now()
	t.finishedAt = &now
	var duration time.Duration
	if t.startedAt != nil {
		duration = now.Sub(*t.startedAt)
	}

	if err == nil {
		t.status = StatusCompleted
		t.result = result
		m.completed++
		log.Info("Task completed", zap.Duration("duration", duration))
		return
	}

	t.status = StatusFailed
	t.errMessage = errorsx.Message(err)

	if t.retryCount < t.maxRetries && !errorsx.IsPermanent(err) {
		if ctx.Err() != nil {
			t.status = StatusCancelled
			log.Info("Task failed during shutdown, retry cancelled", zap.Error(err))
			return
		}
		t.retryCount++
		delay := m.backoff.Backoff(t.retryCount)
		next := now.Add(delay)
		t.nextRetryAt = &next
		m.scheduleRetry(ctx, t, delay)

		log.Warn("Task failed, retry scheduled",
			zap.Error(err),
			zap.Int("retry_count", t.retryCount),
			zap.Int("max_retries", t.maxRetries),
			zap.Duration("backoff", delay),
		)
		return
	}

	m.failed++
	log.Error("Task failed",
		zap.Error(err),
		zap.Int("retry_count", t.retryCount),
		zap.Bool("permanent", errorsx.IsPermanent(err)),
		zap.Duration("duration", duration),
	)
}

// scheduleRetry re-enqueues t at the back of its queue after delay.
// Only the retry goroutine sleeps; workers keep draining their queues.
func (m *Manager) scheduleRetry(ctx context.Context, t *task, delay time.Duration) {
	m.retries.Add(1)
	go func() {
		defer m.retries.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			// Stop cancels the record
			return
		case <-timer.C:
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		if t.status != StatusFailed || t.nextRetryAt == nil {
			return
		}
		t.status = StatusPending
		t.errMessage = ""
		t.nextRetryAt = nil
		t.startedAt = nil
		t.finishedAt = nil
		m.queues[t.priority].Push(t)
	}()
}
