package config

import "go.uber.org/fx"

// Module exports the config module for FX.
// Callers supply Options (fx.Supply) to point at a specific file.
var Module = fx.Module("config",
	fx.Provide(
		NewSource,
		NewConfig,
	),
)
