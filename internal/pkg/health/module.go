package health

import (
	"context"

	"leadgen/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module exports the health module for FX. Providers are registered by the
// application, which knows which backing services are enabled.
var Module = fx.Module("health",
	fx.Provide(NewHealthService),
	fx.Invoke(registerHooks),
)

// HealthServiceParams defines the dependencies for the health service
type HealthServiceParams struct {
	fx.In

	Config *ServiceConfig `optional:"true"`
	Logger *logger.Logger
}

// NewHealthService constructs the health service
func NewHealthService(params HealthServiceParams) *Service {
	cfg := DefaultServiceConfig()
	if params.Config != nil {
		cfg = *params.Config
	}
	params.Logger.Info("Health service initialized")
	return NewService(cfg)
}

func registerHooks(lc fx.Lifecycle, service *Service, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			service.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping health service")
			service.Stop()
			return nil
		},
	})
}
