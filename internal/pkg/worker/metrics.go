package worker

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MetricsSnapshot is a derived view of the manager, recomputed on demand
type MetricsSnapshot struct {
	InstanceID   string           `json:"instance_id"`
	Timestamp    time.Time        `json:"timestamp"`
	Running      bool             `json:"running"`
	TaskNames    []string         `json:"task_names"`
	QueueDepth   map[Priority]int `json:"queue_depth"`
	StatusCounts map[Status]int   `json:"status_counts"`
	Total        int              `json:"total"`
	Active       int              `json:"active"`
	Pending      int              `json:"pending"`

	// Submitted, Completed and Failed are lifetime counters and survive eviction
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`

	SuccessRate       float64              `json:"success_rate"`
	UptimeSeconds     float64              `json:"uptime_seconds"`
	TasksPerHour      float64              `json:"tasks_per_hour"`
	WorkersAlive      int                  `json:"workers_alive"`
	AbandonedHandlers int64                `json:"abandoned_handlers"`
	Names             map[string]NameStats `json:"names,omitempty"`
}

// GetMetrics computes a snapshot of queues, statuses and throughput
func (m *Manager) GetMetrics() MetricsSnapshot {
	now := m.now()
	snap := MetricsSnapshot{
		InstanceID:   m.instanceID,
		Timestamp:    now,
		QueueDepth:   make(map[Priority]int, len(priorityNames)),
		StatusCounts: make(map[Status]int, len(Statuses())),
	}
	for _, st := range Statuses() {
		snap.StatusCounts[st] = 0
	}

	names := make(map[string]struct{})

	m.mu.RLock()
	snap.Running = m.running
	for p, q := range m.queues {
		snap.QueueDepth[p] = q.Len()
	}
	for _, t := range m.tasks {
		snap.StatusCounts[t.status]++
		names[t.name] = struct{}{}
	}
	snap.Total = len(m.tasks)
	snap.Submitted = m.submitted
	snap.Completed = m.completed
	snap.Failed = m.failed
	lifetime := m.uptimeBefore
	if m.running {
		snap.UptimeSeconds = now.Sub(m.startedAt).Seconds()
		lifetime += now.Sub(m.startedAt)
	}
	m.mu.RUnlock()

	snap.Active = snap.StatusCounts[StatusRunning]
	snap.Pending = snap.StatusCounts[StatusPending]

	for _, name := range m.stats.Names() {
		names[name] = struct{}{}
	}
	snap.TaskNames = make([]string, 0, len(names))
	for name := range names {
		snap.TaskNames = append(snap.TaskNames, name)
	}
	sort.Strings(snap.TaskNames)
	snap.Names = m.stats.Snapshot()

	processed := snap.Completed + snap.Failed
	if processed > 0 {
		snap.SuccessRate = float64(snap.Completed) / float64(processed) * 100
	}
	// counters are lifetime totals, so throughput uses every running period
	if hours := lifetime.Hours(); hours > 0 {
		snap.TasksPerHour = float64(processed) / hours
	}

	for _, p := range Priorities() {
		snap.WorkersAlive += int(m.alive[p].Load())
	}
	snap.AbandonedHandlers = m.abandoned.Load()
	return snap
}

// Flatten returns the flat key/value form published to sinks
func (s MetricsSnapshot) Flatten() map[string]interface{} {
	running := 0
	if s.Running {
		running = 1
	}
	flat := map[string]interface{}{
		"instance_id":        s.InstanceID,
		"timestamp":          s.Timestamp.Unix(),
		"manager_running":    running,
		"task_names":         strings.Join(s.TaskNames, ","),
		"total":              s.Total,
		"submitted_total":    s.Submitted,
		"completed_total":    s.Completed,
		"failed_total":       s.Failed,
		"success_rate":       s.SuccessRate,
		"uptime_seconds":     s.UptimeSeconds,
		"tasks_per_hour":     s.TasksPerHour,
		"workers_alive":      s.WorkersAlive,
		"abandoned_handlers": s.AbandonedHandlers,
	}
	for _, st := range Statuses() {
		flat[string(st)] = s.StatusCounts[st]
	}
	for _, p := range Priorities() {
		flat["queue_"+p.String()] = s.QueueDepth[p]
	}
	return flat
}

func (m *Manager) metricsLoop(ctx context.Context, ready chan<- struct{}) {
	defer m.loops.Done()

	ticker := time.NewTicker(m.cfg.MetricsInterval)
	defer ticker.Stop()

	m.log.Info("Metrics loop started", zap.Duration("interval", m.cfg.MetricsInterval))
	signalReady(ready)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Metrics loop stopped")
			return
		case <-ticker.C:
			if err := m.PublishMetrics(ctx); err != nil {
				m.log.Warn("Failed to publish task metrics", zap.Error(err))
			}
		}
	}
}

// PublishMetrics computes a snapshot and hands it to the sink, bounded by PublishTimeout
func (m *Manager) PublishMetrics(ctx context.Context) error {
	pubCtx, cancel := context.WithTimeout(ctx, m.cfg.PublishTimeout)
	defer cancel()
	return m.sink.Publish(pubCtx, m.GetMetrics())
}
