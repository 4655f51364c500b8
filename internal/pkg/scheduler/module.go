package scheduler

import (
	"context"
	"fmt"

	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"go.uber.org/fx"
)

// Module provides a Scheduler fed from the application's Config. Entries
// are added at construction so a bad cron spec fails the app at startup.
var Module = fx.Module("scheduler",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerHooks),
)

// Params holds the dependencies for creating a scheduler
type Params struct {
	fx.In

	Config  Config
	Manager *worker.Manager
	Logger  *logger.Logger
}

// NewFromConfig builds the scheduler and registers every configured entry
func NewFromConfig(p Params) (*Scheduler, error) {
	s, err := New(p.Manager, p.Config.Timezone, p.Logger)
	if err != nil {
		return nil, err
	}
	for _, e := range p.Config.Entries {
		if err := s.Add(e); err != nil {
			return nil, fmt.Errorf("recurring entry %q: %w", e.Name, err)
		}
	}
	return s, nil
}

func registerHooks(lc fx.Lifecycle, s *Scheduler, cfg Config, log *logger.Logger) {
	if !cfg.Enabled {
		log.Info("Recurring scheduler disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}
