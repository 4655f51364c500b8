package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BaseRepository provides the generic gorm operations shared by service repositories
type BaseRepository[T any] struct {
	db *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any](db *gorm.DB) *BaseRepository[T] {
	return &BaseRepository[T]{db: db}
}

// DB returns a session bound to ctx
func (r *BaseRepository[T]) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// InsertBatch creates entities in chunks of batchSize, applying clauses such as ON CONFLICT
func (r *BaseRepository[T]) InsertBatch(ctx context.Context, entities []*T, batchSize int, clauses ...clause.Expression) error {
	if len(entities) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(entities)
	}
	if err := r.DB(ctx).Clauses(clauses...).CreateInBatches(entities, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

// Find returns a page of entities matching every scope, in the given order
func (r *BaseRepository[T]) Find(ctx context.Context, order string, limit, offset int, scopes ...func(*gorm.DB) *gorm.DB) ([]*T, error) {
	var entities []*T
	query := r.DB(ctx).Model(new(T)).Scopes(scopes...)
	if order != "" {
		query = query.Order(order)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get entities: %w", err)
	}
	return entities, nil
}

// Count counts entities matching every scope
func (r *BaseRepository[T]) Count(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) (int64, error) {
	var count int64
	if err := r.DB(ctx).Model(new(T)).Scopes(scopes...).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

// DeleteWhere deletes entities matching query and returns the affected rows
func (r *BaseRepository[T]) DeleteWhere(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result := r.DB(ctx).Where(query, args...).Delete(new(T))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete entities: %w", result.Error)
	}
	return result.RowsAffected, nil
}
