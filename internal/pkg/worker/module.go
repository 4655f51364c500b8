package worker

import (
	"context"

	"leadgen/internal/pkg/logger"

	"go.uber.org/fx"
)

// Module exports the task manager for FX. The application supplies a Config
// and may provide a Sink, an Archiver and middlewares in the "task_middlewares" group.
var Module = fx.Module("worker",
	fx.Provide(NewManagerFromParams),
	fx.Invoke(registerHooks),
)

// Params holds the dependencies for creating a manager
type Params struct {
	fx.In

	Config      Config
	Logger      *logger.Logger
	Sink        Sink         `optional:"true"`
	Archiver    Archiver     `optional:"true"`
	Registry    *Registry    `optional:"true"`
	Middlewares []Middleware `group:"task_middlewares"`
}

// NewManagerFromParams builds the single manager instance shared by the process
func NewManagerFromParams(p Params) *Manager {
	m := NewManager(p.Config, p.Logger,
		WithSink(p.Sink),
		WithArchiver(p.Archiver),
		WithRegistry(p.Registry),
	)
	for _, mw := range p.Middlewares {
		if mw != nil {
			m.Use(mw)
		}
	}
	return m
}

// registerHooks ties the manager to the application lifecycle
func registerHooks(lc fx.Lifecycle, m *Manager, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Task manager module starting")
			return m.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Task manager module stopping")
			return m.Stop(ctx)
		},
	})
}
