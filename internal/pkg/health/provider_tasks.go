package health

import (
	"context"
	"time"
)

// TaskManagerChecker is the view of the background task manager the provider needs
type TaskManagerChecker interface {
	IsRunning() bool
	// IsHealthy is true when every priority level has a live worker
	IsHealthy() bool
	QueueDepth() int
}

// TaskManagerProviderConfig configures the task manager health provider
type TaskManagerProviderConfig struct {
	Name    string
	Checker TaskManagerChecker
	// DegradedQueueDepth marks the provider DEGRADED once this many tasks wait; 0 disables
	DegradedQueueDepth int
}

// TaskManagerProvider reports the background task manager's health
type TaskManagerProvider struct {
	config TaskManagerProviderConfig
}

// NewTaskManagerProvider creates the provider
func NewTaskManagerProvider(config TaskManagerProviderConfig) *TaskManagerProvider {
	if config.Name == "" {
		config.Name = "background-tasks"
	}
	return &TaskManagerProvider{config: config}
}

func (p *TaskManagerProvider) Name() string {
	return p.config.Name
}

func (p *TaskManagerProvider) Check(_ context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.config.Name,
		Status:    StatusDown,
		Details:   make(map[string]interface{}),
		CheckedAt: time.Now(),
	}

	running := p.config.Checker.IsRunning()
	result.Details["running"] = running
	if !running {
		result.Error = "task manager is not running"
		return result
	}

	depth := p.config.Checker.QueueDepth()
	result.Details["queue_depth"] = depth

	if !p.config.Checker.IsHealthy() {
		result.Status = StatusDegraded
		result.Error = "a priority level has no live worker"
		return result
	}

	if p.config.DegradedQueueDepth > 0 && depth >= p.config.DegradedQueueDepth {
		result.Status = StatusDegraded
		result.Details["reason"] = "queue depth above threshold"
		return result
	}

	result.Status = StatusUp
	return result
}
