package worker

import (
	"time"
)

// Config holds the configuration for the task manager
type Config struct {
	// PollInterval bounds how long a worker blocks on an empty queue
	// before re-checking the stop signal
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`

	// DefaultMaxRetries applies when Submit is called without WithMaxRetries
	DefaultMaxRetries int `mapstructure:"default_max_retries" validate:"min=0"`

	// DefaultTimeout applies when Submit is called without WithTimeout
	DefaultTimeout time.Duration `mapstructure:"default_timeout" validate:"gt=0"`

	// BaseBackoff and MaxBackoff shape the retry delay: BaseBackoff * 2^retry_count, capped
	BaseBackoff time.Duration `mapstructure:"base_backoff" validate:"gt=0"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" validate:"gtefield=BaseBackoff"`

	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" validate:"gt=0"`

	// Retention is how long terminal tasks stay queryable before eviction
	Retention time.Duration `mapstructure:"retention" validate:"gt=0"`

	// StuckThreshold is how long a task may stay running before it is failed by maintenance
	StuckThreshold time.Duration `mapstructure:"stuck_threshold" validate:"gt=0"`

	MetricsInterval time.Duration `mapstructure:"metrics_interval" validate:"gt=0"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout" validate:"gt=0"`

	// StartTimeout bounds how long Start waits for every loop to come up
	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"gt=0"`
}

// DefaultConfig returns a Config with the reference timings
func DefaultConfig() Config {
	return Config{
		PollInterval:        1 * time.Second,
		DefaultMaxRetries:   3,
		DefaultTimeout:      300 * time.Second,
		BaseBackoff:         1 * time.Second,
		MaxBackoff:          60 * time.Second,
		MaintenanceInterval: 300 * time.Second,
		Retention:           24 * time.Hour,
		StuckThreshold:      30 * time.Minute,
		MetricsInterval:     60 * time.Second,
		PublishTimeout:      5 * time.Second,
		StartTimeout:        5 * time.Second,
	}
}

// withDefaults fills unset durations from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.PollInterval, d.PollInterval)
	fill(&c.DefaultTimeout, d.DefaultTimeout)
	fill(&c.BaseBackoff, d.BaseBackoff)
	fill(&c.MaxBackoff, d.MaxBackoff)
	fill(&c.MaintenanceInterval, d.MaintenanceInterval)
	fill(&c.Retention, d.Retention)
	fill(&c.StuckThreshold, d.StuckThreshold)
	fill(&c.MetricsInterval, d.MetricsInterval)
	fill(&c.PublishTimeout, d.PublishTimeout)
	fill(&c.StartTimeout, d.StartTimeout)
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.DefaultMaxRetries < 0 {
		c.DefaultMaxRetries = 0
	}
	return c
}
