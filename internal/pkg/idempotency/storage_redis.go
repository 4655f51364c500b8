package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadgen/internal/pkg/redis/keys"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps records in Redis so retries hitting another replica are deduplicated too
type RedisStorage struct {
	client redis.UniversalClient
}

// NewRedisStorage creates a new Redis-based storage
func NewRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{client: client}
}

// Load implements Storage
func (s *RedisStorage) Load(ctx context.Context, key string) (*Record, error) {
	data, err := s.client.Get(ctx, keys.SubmitIdempotencyKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

// TryMarkProcessing implements Storage with SETNX
func (s *RedisStorage) TryMarkProcessing(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(Record{Key: key, Status: StatusProcessing, CreatedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("failed to marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, keys.SubmitIdempotencyKey(key), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// SaveResult implements Storage
func (s *RedisStorage) SaveResult(ctx context.Context, key string, result string, ttl time.Duration) error {
	data, err := json.Marshal(Record{Key: key, Status: StatusCompleted, Result: result, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.client.Set(ctx, keys.SubmitIdempotencyKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Release implements Storage
func (s *RedisStorage) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keys.SubmitIdempotencyKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
