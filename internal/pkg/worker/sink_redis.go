package worker

import (
	"context"
	"fmt"
	"time"

	"leadgen/internal/pkg/redis/keys"
	"leadgen/internal/pkg/retry"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisSinkConfig holds configuration for the Redis sink
type RedisSinkConfig struct {
	// TTL expires the hash when the publishing manager goes away
	TTL time.Duration

	// Retry covers transient write failures within one publish
	Retry retry.Policy
}

// DefaultRedisSinkConfig keeps a snapshot for a few metrics cycles
func DefaultRedisSinkConfig() RedisSinkConfig {
	return RedisSinkConfig{
		TTL:   5 * time.Minute,
		Retry: retry.ExponentialBackoff(100*time.Millisecond, time.Second, true, 3),
	}
}

// RedisSink stores the flattened snapshot in a hash per manager instance
type RedisSink struct {
	client redisv9.UniversalClient
	config RedisSinkConfig
}

// NewRedisSink creates a sink writing through client
func NewRedisSink(client redisv9.UniversalClient, config RedisSinkConfig) *RedisSink {
	if config.TTL <= 0 {
		config.TTL = DefaultRedisSinkConfig().TTL
	}
	return &RedisSink{client: client, config: config}
}

// Publish replaces the instance hash with the snapshot and refreshes its TTL
func (s *RedisSink) Publish(ctx context.Context, snapshot MetricsSnapshot) error {
	key := keys.TaskMetricsKey(snapshot.InstanceID)
	fields := redisFields(snapshot)

	_, err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) (struct{}, error) {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.config.TTL)
		pipe.SAdd(ctx, keys.TaskMetricsIndexKey(), snapshot.InstanceID)
		_, err := pipe.Exec(ctx)
		return struct{}{}, err
	}, nil)
	if err != nil {
		return fmt.Errorf("publish task metrics to redis key %s: %w", key, err)
	}
	return nil
}

// redisFields converts the flat snapshot into values go-redis can encode
func redisFields(snapshot MetricsSnapshot) map[string]interface{} {
	flat := snapshot.Flatten()
	fields := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		switch val := v.(type) {
		case string, int, int64, float64:
			fields[k] = val
		default:
			fields[k] = fmt.Sprint(val)
		}
	}
	return fields
}
