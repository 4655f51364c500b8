package idempotency

import (
	"time"

	"leadgen/internal/pkg/logger"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// DefaultTTL is how long a completed submission is replayed
const DefaultTTL = 24 * time.Hour

// Config holds idempotency service configuration
type Config struct {
	TTL time.Duration `mapstructure:"ttl" validate:"min=0"`
}

// Module provides a Service backed by Redis when a client is available,
// otherwise by process memory.
var Module = fx.Module("idempotency",
	fx.Provide(
		provideStorage,
		provideService,
	),
)

// StorageParams holds dependencies for choosing a storage
type StorageParams struct {
	fx.In

	Redis  *redisv9.Client `optional:"true"`
	Logger *logger.Logger
}

func provideStorage(p StorageParams) Storage {
	if p.Redis == nil {
		p.Logger.Info("Idempotency keys stored in memory")
		return NewMemoryStorage()
	}
	return NewRedisStorage(p.Redis)
}

func provideService(storage Storage, cfg Config) *Service {
	return NewService(storage, cfg.TTL)
}
