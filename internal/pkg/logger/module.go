package logger

import (
	"context"

	"go.uber.org/fx"
)

// Module exports the logger module for FX
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Invoke(func(lc fx.Lifecycle, log *Logger) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				// stdout/stderr sync returns EINVAL on some platforms
				_ = log.Sync()
				return nil
			},
		})
	}),
)
