package scheduler

// Entry describes one recurring submission
type Entry struct {
	// Name is the registered task name to submit
	Name string `mapstructure:"name" validate:"required"`
	// Schedule is a 5-field cron spec or a descriptor (@hourly, @every 10m)
	Schedule string `mapstructure:"schedule" validate:"required"`
	// Priority is one of critical, high, normal, low. Empty means normal.
	Priority string `mapstructure:"priority" validate:"omitempty,oneof=critical high normal low"`
	// MaxRetries overrides the manager default when set
	MaxRetries *int `mapstructure:"max_retries" validate:"omitempty,min=0"`
	// Args are passed to the handler on every run
	Args map[string]interface{} `mapstructure:"args"`
}

// Config holds the recurring submissions for a service
type Config struct {
	Enabled  bool    `mapstructure:"enabled"`
	Timezone string  `mapstructure:"timezone"`
	Entries  []Entry `mapstructure:"entries" validate:"dive"`
}
