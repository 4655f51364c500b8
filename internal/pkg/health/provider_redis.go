package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider checks the Redis instance backing the metrics sink
type RedisProvider struct {
	name     string
	client   redis.UniversalClient
	degraded time.Duration
}

// NewRedisProvider creates the provider; latency above degraded reports DEGRADED (default 100ms)
func NewRedisProvider(name string, client redis.UniversalClient, degraded time.Duration) *RedisProvider {
	if name == "" {
		name = "redis"
	}
	if degraded <= 0 {
		degraded = 100 * time.Millisecond
	}
	return &RedisProvider{name: name, client: client, degraded: degraded}
}

func (p *RedisProvider) Name() string {
	return p.name
}

func (p *RedisProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.name,
		CheckedAt: time.Now(),
		Details:   make(map[string]interface{}),
	}

	start := time.Now()
	err := p.client.Ping(ctx).Err()
	latency := time.Since(start)
	result.Details["latency_ms"] = latency.Milliseconds()

	if err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("failed to ping redis: %v", err)
		return result
	}

	if client, ok := p.client.(*redis.Client); ok {
		stats := client.PoolStats()
		result.Details["total_conns"] = stats.TotalConns
		result.Details["idle_conns"] = stats.IdleConns
		result.Details["pool_timeouts"] = stats.Timeouts
	}

	if latency > p.degraded {
		result.Status = StatusDegraded
		result.Details["message"] = "high latency detected"
		return result
	}

	result.Status = StatusUp
	return result
}
