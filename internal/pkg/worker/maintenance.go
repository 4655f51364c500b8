package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (m *Manager) maintenanceLoop(ctx context.Context, ready chan<- struct{}) {
	defer m.loops.Done()

	ticker := time.NewTicker(m.cfg.MaintenanceInterval)
	defer ticker.Stop()

	m.log.Info("Maintenance loop started", zap.Duration("interval", m.cfg.MaintenanceInterval))
	signalReady(ready)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Maintenance loop stopped")
			return
		case <-ticker.C:
			m.runMaintenance(ctx)
		}
	}
}

// MaintenanceReport summarises one maintenance pass
type MaintenanceReport struct {
	Evicted       int
	ArchiveFailed int
	Stuck         int
	WorkersAlive  int
	Respawned     int
}

// runMaintenance evicts old terminal tasks, fails stuck ones and checks worker liveness.
// Expired records are archived outside mu and evicted only once the archive succeeded.
func (m *Manager) runMaintenance(ctx context.Context) MaintenanceReport {
	var report MaintenanceReport
	now := m.now()
	var expired []TaskInfo

	m.mu.Lock()
	for _, t := range m.tasks {
		switch {
		case t.terminal():
			if m.expired(t, now) {
				expired = append(expired, t.info())
			}
		case t.status == StatusRunning && t.startedAt != nil:
			running := now.Sub(*t.startedAt)
			if running <= m.cfg.StuckThreshold {
				continue
			}
			t.status = StatusFailed
			t.finishedAt = &now
			t.nextRetryAt = nil
			t.errMessage = stuckError(running, m.cfg.StuckThreshold).Error()
			m.failed++
			report.Stuck++
			m.log.ForTask(t.id, t.name).Error("Task stuck, marked failed", zap.Duration("running", running))
		}
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		if err := m.archiver.Archive(ctx, expired); err != nil {
			report.ArchiveFailed = len(expired)
			m.log.Error("Failed to archive expired tasks, keeping them until the next pass",
				zap.Int("count", len(expired)),
				zap.Error(err),
			)
		} else {
			report.Evicted = m.evict(expired, now)
		}
	}

	report.WorkersAlive, report.Respawned = m.checkWorkers(ctx)

	m.log.Info("Maintenance completed",
		zap.Int("evicted", report.Evicted),
		zap.Int("archive_failed", report.ArchiveFailed),
		zap.Int("stuck", report.Stuck),
		zap.Int("workers_alive", report.WorkersAlive),
	)
	return report
}

// expired reports whether a terminal task is past retention; caller holds mu
func (m *Manager) expired(t *task, now time.Time) bool {
	finished := t.createdAt
	if t.finishedAt != nil {
		finished = *t.finishedAt
	}
	return now.Sub(finished) > m.cfg.Retention
}

// evict deletes the archived records that are still terminal and expired
func (m *Manager) evict(archived []TaskInfo, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, info := range archived {
		t, ok := m.tasks[info.ID]
		if !ok || !t.terminal() || !m.expired(t, now) {
			continue
		}
		delete(m.tasks, info.ID)
		n++
	}
	return n
}

// checkWorkers warns when fewer workers are alive than priority levels and
// replaces any priority left without one
func (m *Manager) checkWorkers(ctx context.Context) (alive, respawned int) {
	priorities := Priorities()
	for _, p := range priorities {
		alive += int(m.alive[p].Load())
	}
	if alive >= len(priorities) {
		return alive, 0
	}

	m.log.Warn("Fewer workers alive than priority levels",
		zap.Int("alive", alive),
		zap.Int("expected", len(priorities)),
	)
	// replacements belong to the run, not to the caller's context
	m.mu.RLock()
	runCtx := m.runCtx
	m.mu.RUnlock()
	if ctx.Err() != nil || runCtx == nil || runCtx.Err() != nil {
		return alive, 0
	}
	for _, p := range priorities {
		if m.alive[p].Load() == 0 {
			m.log.Warn("Respawning worker", zap.Stringer("priority", p))
			m.spawnWorker(runCtx, p, nil)
			respawned++
		}
	}
	return alive, respawned
}
