package database

import (
	"context"

	"leadgen/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module exports the database module for FX
var Module = fx.Module("database",
	fx.Provide(NewDatabase),
	fx.Invoke(registerHooks),
)

// registerHooks closes the pool after every other component has stopped
func registerHooks(lc fx.Lifecycle, db *Database, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing database connection")
			return db.Close()
		},
	})
}
