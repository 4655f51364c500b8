package jobs

import (
	"context"
	"time"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"go.uber.org/zap"
)

// Purger deletes archived task rows archived before a cutoff
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// PurgeJob removes old rows from the task archive.
//
// Args: older_than_days (optional, defaults to the configured retention).
type PurgeJob struct {
	purger      Purger
	defaultDays int
	now         func() time.Time
	log         *logger.Logger
}

// NewPurgeJob returns nil when there is no archive to purge
func NewPurgeJob(purger Purger, defaultDays int, log *logger.Logger) *PurgeJob {
	if purger == nil {
		return nil
	}
	return &PurgeJob{
		purger:      purger,
		defaultDays: defaultDays,
		now:         time.Now,
		log:         log.Named(NameArchivePurge),
	}
}

func (j *PurgeJob) Name() string { return NameArchivePurge }

// Execute implements worker.Handler
func (j *PurgeJob) Execute(ctx context.Context, args worker.Args) (interface{}, error) {
	days, err := intArg(args, "older_than_days", j.defaultDays)
	if err != nil {
		return nil, err
	}

	before := j.now().UTC().AddDate(0, 0, -days)
	deleted, err := j.purger.Purge(ctx, before)
	if err != nil {
		return nil, errorsx.WrapRetryable(err)
	}

	j.log.Info("Task archive purged", zap.Int64("deleted", deleted), zap.Time("before", before))
	return map[string]interface{}{
		"deleted": deleted,
		"before":  before,
	}, nil
}
