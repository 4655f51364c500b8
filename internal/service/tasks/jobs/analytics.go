package jobs

import (
	"context"
	"fmt"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/worker"
)

// MetricsPublisher exposes the manager's snapshot and sink. *worker.Manager satisfies it.
type MetricsPublisher interface {
	GetMetrics() worker.MetricsSnapshot
	PublishMetrics(ctx context.Context) error
}

// AnalyticsJob publishes a metrics snapshot outside the periodic cycle, so
// dashboards can be refreshed on demand or on a cron schedule.
type AnalyticsJob struct {
	metrics MetricsPublisher
}

// NewAnalyticsJob creates the analytics_refresh job
func NewAnalyticsJob(metrics MetricsPublisher) *AnalyticsJob {
	return &AnalyticsJob{metrics: metrics}
}

func (j *AnalyticsJob) Name() string { return NameAnalyticsRefresh }

// Execute implements worker.Handler
func (j *AnalyticsJob) Execute(ctx context.Context, _ worker.Args) (interface{}, error) {
	if err := j.metrics.PublishMetrics(ctx); err != nil {
		return nil, errorsx.WrapRetryable(fmt.Errorf("publish metrics: %w", err))
	}
	snap := j.metrics.GetMetrics()
	return map[string]interface{}{
		"total":        snap.Total,
		"active":       snap.Active,
		"success_rate": snap.SuccessRate,
		"published_at": snap.Timestamp,
	}, nil
}
