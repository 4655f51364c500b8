package idempotency

import (
	"context"
	"fmt"
	"time"
)

// MaxKeyLength bounds client-supplied keys
const MaxKeyLength = 255

// Service runs an operation at most once per key within the TTL and replays
// its result to later callers. A failed operation releases the key so the
// caller may retry with the same key.
type Service struct {
	storage Storage
	ttl     time.Duration
}

// NewService creates a new idempotency service
func NewService(storage Storage, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{storage: storage, ttl: ttl}
}

// Execute runs fn unless key already completed, in which case the stored
// result is returned with replayed set.
func (s *Service) Execute(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (result string, replayed bool, err error) {
	if key == "" || len(key) > MaxKeyLength {
		return "", false, ErrInvalidKey
	}

	record, err := s.storage.Load(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to load record: %v", ErrStorageFailure, err)
	}
	if record != nil {
		switch record.Status {
		case StatusCompleted:
			return record.Result, true, nil
		case StatusProcessing:
			return "", false, ErrAlreadyProcessing
		}
	}

	marked, err := s.storage.TryMarkProcessing(ctx, key, s.ttl)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to mark processing: %v", ErrStorageFailure, err)
	}
	if !marked {
		return "", false, ErrAlreadyProcessing
	}

	result, execErr := fn(ctx)
	if execErr != nil {
		if relErr := s.storage.Release(ctx, key); relErr != nil {
			return "", false, fmt.Errorf("%w: failed to release key: %v (original error: %w)", ErrStorageFailure, relErr, execErr)
		}
		return "", false, execErr
	}

	if err := s.storage.SaveResult(ctx, key, result, s.ttl); err != nil {
		return "", false, fmt.Errorf("%w: failed to save result: %v", ErrStorageFailure, err)
	}
	return result, false, nil
}
