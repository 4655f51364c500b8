package repository

import (
	"context"
	"fmt"
	"time"

	"leadgen/internal/pkg/database"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArchiveRepository stores evicted task records in postgres
type ArchiveRepository struct {
	base      *database.BaseRepository[TaskArchive]
	batchSize int
	now       func() time.Time
	log       *logger.Logger
}

var _ worker.Archiver = (*ArchiveRepository)(nil)

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *database.Database, batchSize int, log *logger.Logger) *ArchiveRepository {
	return &ArchiveRepository{
		base:      database.NewBaseRepository[TaskArchive](db.DB),
		batchSize: batchSize,
		now:       time.Now,
		log:       log.Named("archive"),
	}
}

// Archive implements worker.Archiver. Re-archiving a task id is a no-op.
func (r *ArchiveRepository) Archive(ctx context.Context, tasks []worker.TaskInfo) error {
	if len(tasks) == 0 {
		return nil
	}
	now := r.now().UTC()
	rows := make([]*TaskArchive, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, fromTaskInfo(t, now))
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "task_id"}}, DoNothing: true}
	if err := r.base.InsertBatch(ctx, rows, r.batchSize, onConflict); err != nil {
		return fmt.Errorf("failed to archive tasks: %w", err)
	}

	r.log.Debug("Archived tasks", zap.Int("count", len(rows)))
	return nil
}

// Purge deletes archived rows older than before and returns how many were removed
func (r *ArchiveRepository) Purge(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.base.DeleteWhere(ctx, "archived_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge archive: %w", err)
	}
	return n, nil
}

// ListFilter narrows List results
type ListFilter struct {
	Name   string
	Status string
	Limit  int
	Offset int
}

// List returns archived rows, newest first, and the total matching count
func (r *ArchiveRepository) List(ctx context.Context, f ListFilter) ([]*TaskArchive, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if f.Name != "" {
			db = db.Where("name = ?", f.Name)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}

	total, err := r.base.Count(ctx, scope)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.base.Find(ctx, "archived_at DESC, id DESC", f.Limit, f.Offset, scope)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
