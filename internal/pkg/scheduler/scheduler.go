package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Submitter accepts named task submissions. *worker.Manager satisfies it.
type Submitter interface {
	SubmitNamed(name string, args worker.Args, opts ...worker.SubmitOption) (string, error)
}

// EntryInfo is a read-only view of a recurring entry
type EntryInfo struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Priority   string     `json:"priority"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	PrevRun    *time.Time `json:"prev_run,omitempty"`
	Submitted  int64      `json:"submitted"`
	Failed     int64      `json:"failed"`
	LastTaskID string     `json:"last_task_id,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

type entry struct {
	spec  Entry
	id    cron.EntryID
	opts  []worker.SubmitOption
	stats EntryInfo
}

// Scheduler submits named tasks to the task manager on cron schedules.
// It only enqueues; execution, retries and timeouts belong to the manager.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	submit Submitter
	log    *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry
	running bool
}

// New creates a scheduler. An empty timezone means the local zone.
func New(submit Submitter, timezone string, log *logger.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}

	log = log.Named("scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := newCronLogger(log)

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		parser:  parser,
		submit:  submit,
		log:     log,
		entries: make(map[string]*entry),
	}, nil
}

// Add registers a recurring entry. Entries may be added before or after Start.
func (s *Scheduler) Add(spec Entry) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty task name", ErrInvalidSchedule)
	}
	schedule, err := s.parser.Parse(spec.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, spec.Schedule, err)
	}

	prio := worker.PriorityNormal
	if spec.Priority != "" {
		prio, err = worker.ParsePriority(spec.Priority)
		if err != nil {
			return err
		}
	}
	opts := []worker.SubmitOption{worker.WithPriority(prio)}
	if spec.MaxRetries != nil {
		opts = append(opts, worker.WithMaxRetries(*spec.MaxRetries))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrEntryAlreadyExists, spec.Name)
	}

	e := &entry{
		spec: spec,
		opts: opts,
		stats: EntryInfo{
			Name:     spec.Name,
			Schedule: spec.Schedule,
			Priority: prio.String(),
		},
	}
	e.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(e) }))
	s.entries[spec.Name] = e

	s.log.Info("Recurring task registered",
		zap.String("task_name", spec.Name),
		zap.String("schedule", spec.Schedule),
		zap.String("priority", prio.String()),
	)
	return nil
}

// Remove unregisters an entry
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return nil
}

// Trigger submits an entry immediately, outside its schedule
func (s *Scheduler) Trigger(name string) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return s.fire(e)
}

func (s *Scheduler) fire(e *entry) (string, error) {
	args := make(worker.Args, len(e.spec.Args))
	for k, v := range e.spec.Args {
		args[k] = v
	}

	id, err := s.submit.SubmitNamed(e.spec.Name, args, e.opts...)

	s.mu.Lock()
	if err != nil {
		e.stats.Failed++
		e.stats.LastError = err.Error()
	} else {
		e.stats.Submitted++
		e.stats.LastTaskID = id
		e.stats.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Recurring submission failed",
			zap.String("task_name", e.spec.Name),
			zap.Error(err),
		)
		return "", err
	}
	s.log.Debug("Recurring task submitted",
		zap.String("task_name", e.spec.Name),
		zap.String("task_id", id),
	)
	return id, nil
}

// Entries returns every entry sorted by name
func (s *Scheduler) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := e.stats
		ce := s.cron.Entry(e.id)
		if !ce.Next.IsZero() {
			next := ce.Next
			info.NextRun = &next
		}
		if !ce.Prev.IsZero() {
			prev := ce.Prev
			info.PrevRun = &prev
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins firing entries
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyStarted
	}
	s.running = true
	s.cron.Start()
	s.log.Info("Scheduler started", zap.Int("entries", len(s.entries)))
	return nil
}

// Stop prevents further firings and waits for in-flight submissions or ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
