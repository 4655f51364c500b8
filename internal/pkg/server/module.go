package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"leadgen/internal/pkg/config"
	"leadgen/internal/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports the server module for FX
var Module = fx.Module("server",
	fx.Provide(
		NewEchoServer,
	),
	fx.Invoke(registerHooks),
)

// registerHooks registers lifecycle hooks for server
func registerHooks(lc fx.Lifecycle, server *Server, cfg *config.Config, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("Server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	})
}
