package redis

import (
	"context"
	"fmt"
	"time"

	"leadgen/internal/pkg/config"
	"leadgen/internal/pkg/logger"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the redis module for FX.
// The provided client is nil when redis.enabled is false.
var Module = fx.Module("redis",
	fx.Provide(NewRedisClient),
	fx.Invoke(registerHooks),
)

const pingTimeout = 5 * time.Second

// NewRedisClient constructs the shared Redis client, or nil when Redis is disabled
func NewRedisClient(cfg *config.Config, log *logger.Logger) (*redisv9.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info("Redis disabled")
		return nil, nil
	}

	client := redisv9.NewClient(&redisv9.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	log.Info("Redis client initialized", zap.String("addr", cfg.Redis.Addr))
	return client, nil
}

func registerHooks(lc fx.Lifecycle, rdb *redisv9.Client, log *logger.Logger) {
	if rdb == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Redis client")
			return rdb.Close()
		},
	})
}
