package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the priority queues, one worker per priority, the retry
// scheduler and the maintenance and metrics loops.
//
// Every task record field is guarded by mu. Queues have their own lock and
// are pushed to while mu is held, but workers pop without it: a task popped
// and not yet marked running is pending while sitting in no queue, so the
// summed queue depth may trail the pending count.
type Manager struct {
	cfg        Config
	log        *logger.Logger
	sink       Sink
	archiver   Archiver
	now        func() time.Time
	instanceID string
	backoff    retry.Policy

	registry    *Registry
	stats       *StatsCollector
	mwMu        sync.RWMutex
	middlewares []Middleware

	// lifecycle serialises Start and Stop
	lifecycle sync.Mutex

	mu        sync.RWMutex
	tasks     map[string]*task
	queues    map[Priority]*Queue[*task]
	running   bool
	startedAt time.Time
	runCtx    context.Context
	cancel    context.CancelFunc
	submitted int64
	completed int64
	failed    int64

	// workerCancels stops a single priority's worker
	workerCancels [len(priorityNames)]context.CancelFunc

	// uptimeBefore accumulates the running time of earlier Start/Stop cycles
	uptimeBefore time.Duration

	loops   sync.WaitGroup
	retries sync.WaitGroup

	seq       atomic.Uint64
	alive     [len(priorityNames)]atomic.Int32
	abandoned atomic.Int64
}

// Option configures a Manager
type Option func(*Manager)

// WithSink sets where the metrics loop publishes snapshots
func WithSink(s Sink) Option {
	return func(m *Manager) {
		if s != nil {
			m.sink = s
		}
	}
}

// WithArchiver sets where maintenance stores records before eviction
func WithArchiver(a Archiver) Option {
	return func(m *Manager) {
		if a != nil {
			m.archiver = a
		}
	}
}

// WithClock replaces time.Now for timestamps, eviction and stuck detection
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithInstanceID overrides the generated manager instance id
func WithInstanceID(id string) Option {
	return func(m *Manager) {
		if id != "" {
			m.instanceID = id
		}
	}
}

// WithRegistry shares a handler registry with other components
func WithRegistry(r *Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// NewManager creates a stopped manager. Tasks may be submitted before Start.
func NewManager(cfg Config, log *logger.Logger, opts ...Option) *Manager {
	cfg = cfg.withDefaults()

	m := &Manager{
		cfg:        cfg,
		log:        log.Named("tasks"),
		archiver:   NopArchiver{},
		now:        time.Now,
		instanceID: uuid.NewString(),
		backoff:    retry.Policy{BaseDelay: cfg.BaseBackoff, MaxDelay: cfg.MaxBackoff},
		registry:   NewRegistry(),
		stats:      NewStatsCollector(),
		tasks:      make(map[string]*task),
		queues:     make(map[Priority]*Queue[*task], len(priorityNames)),
	}
	for _, p := range Priorities() {
		m.queues[p] = NewQueue[*task]()
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sink == nil {
		m.sink = NewLogSink(m.log)
	}
	m.log = m.log.With(zap.String("instance_id", m.instanceID))
	return m
}

// InstanceID identifies this manager in logs and published metrics
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.cfg
}

// Register binds a handler to a task name for SubmitNamed
func (m *Manager) Register(name string, h Handler) error {
	if err := m.registry.Register(name, h); err != nil {
		return err
	}
	m.log.Info("Task handler registered", zap.String("name", name))
	return nil
}

// RegisteredNames lists the names accepted by SubmitNamed
func (m *Manager) RegisteredNames() []string {
	return m.registry.Names()
}

// Use adds a middleware around every handler execution
func (m *Manager) Use(mw Middleware) {
	m.mwMu.Lock()
	defer m.mwMu.Unlock()
	m.middlewares = append(m.middlewares, mw)
}

func (m *Manager) wrap(h Handler) Handler {
	m.mwMu.RLock()
	defer m.mwMu.RUnlock()

	chain := make([]Middleware, 0, len(m.middlewares)+1)
	chain = append(chain, m.middlewares...)
	chain = append(chain, MetricsMiddleware(m.stats))
	return Chain(chain...)(h)
}

// Submit records a new pending task and enqueues it on its priority queue.
// The only failure is a nil handler.
func (m *Manager) Submit(name string, h Handler, args Args, opts ...SubmitOption) (string, error) {
	if isNilHandler(h) {
		return "", ErrNilHandler
	}

	o := submitOptions{
		priority:   PriorityNormal,
		maxRetries: m.cfg.DefaultMaxRetries,
		timeout:    m.cfg.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	now := m.now()
	t := &task{
		id:         fmt.Sprintf("%s-%d-%d", name, now.UnixNano(), m.seq.Add(1)),
		name:       name,
		handler:    h,
		args:       args.clone(),
		priority:   o.priority,
		status:     StatusPending,
		createdAt:  now,
		maxRetries: o.maxRetries,
		timeout:    o.timeout,
	}

	m.mu.Lock()
	m.tasks[t.id] = t
	m.submitted++
	m.queues[t.priority].Push(t)
	m.mu.Unlock()

	m.log.ForTask(t.id, name).Info("Task submitted",
		zap.Stringer("priority", t.priority),
		zap.Int("max_retries", t.maxRetries),
		zap.Duration("timeout", t.timeout),
	)
	return t.id, nil
}

// SubmitNamed resolves name in the handler registry and submits it
func (m *Manager) SubmitNamed(name string, args Args, opts ...SubmitOption) (string, error) {
	h, ok := m.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Submit(name, h, args, opts...)
}

// GetTaskStatus returns a snapshot of one task
func (m *Manager) GetTaskStatus(id string) (TaskInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return TaskInfo{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.info(), nil
}

// GetAllTasks returns snapshots of every task in the registry, oldest first
func (m *Manager) GetAllTasks() []TaskInfo {
	m.mu.RLock()
	out := make([]TaskInfo, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// IsRunning reports whether Start has succeeded and Stop has not been called since
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// IsHealthy is true iff the manager is running and every priority has a live worker
func (m *Manager) IsHealthy() bool {
	if !m.IsRunning() {
		return false
	}
	for _, p := range Priorities() {
		if m.alive[p].Load() < 1 {
			return false
		}
	}
	return true
}

// QueueDepth returns the number of tasks waiting across all priorities
func (m *Manager) QueueDepth() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, q := range m.queues {
		n += q.Len()
	}
	return n
}

// Start spawns one worker per priority plus the maintenance and metrics loops.
// Calling Start on a running manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrManagerStart, err)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	// loops outlive the start context, which fx cancels once OnStart returns
	runCtx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.startedAt = m.now()
	m.runCtx = runCtx
	m.cancel = cancel
	m.mu.Unlock()

	priorities := Priorities()
	ready := make(chan struct{}, len(priorities)+2)

	for _, p := range priorities {
		m.spawnWorker(runCtx, p, ready)
	}
	m.loops.Add(2)
	go m.maintenanceLoop(runCtx, ready)
	go m.metricsLoop(runCtx, ready)

	timer := time.NewTimer(m.cfg.StartTimeout)
	defer timer.Stop()

	for i := 0; i < cap(ready); i++ {
		select {
		case <-ready:
		case <-ctx.Done():
			m.shutdown(context.Background())
			return fmt.Errorf("%w: %v", ErrManagerStart, ctx.Err())
		case <-timer.C:
			m.shutdown(context.Background())
			return fmt.Errorf("%w: only %d of %d loops started within %s",
				ErrManagerStart, i, cap(ready), m.cfg.StartTimeout)
		}
	}

	m.log.Info("Task manager started",
		zap.Int("workers", len(priorities)),
		zap.Duration("maintenance_interval", m.cfg.MaintenanceInterval),
		zap.Duration("metrics_interval", m.cfg.MetricsInterval),
	)
	return nil
}

// Stop signals every loop, waits for them (bounded by ctx) and cancels every
// task that has not reached a final state. Stopping a stopped manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	return m.shutdown(ctx)
}

func (m *Manager) shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.runCtx = nil
	m.uptimeBefore += m.now().Sub(m.startedAt)
	m.mu.Unlock()

	m.log.Info("Stopping task manager")
	cancel()

	done := make(chan struct{})
	go func() {
		m.loops.Wait()
		m.retries.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("task manager stop: %w", ctx.Err())
		m.log.Warn("Task manager stop timed out, cancelling tasks anyway")
	}

	cancelled := m.cancelOutstanding()
	m.log.Info("Task manager stopped", zap.Int("cancelled", cancelled))
	return err
}

// cancelOutstanding moves every non-terminal task to cancelled
func (m *Manager) cancelOutstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range m.queues {
		q.Drain()
	}

	now := m.now()
	n := 0
	for _, t := range m.tasks {
		if t.terminal() {
			continue
		}
		t.status = StatusCancelled
		t.finishedAt = &now
		t.nextRetryAt = nil
		n++
	}
	return n
}
