package config

import (
	"time"

	"leadgen/internal/pkg/config"
	"leadgen/internal/pkg/health"
	"leadgen/internal/pkg/httpclient"
	"leadgen/internal/pkg/idempotency"
	"leadgen/internal/pkg/scheduler"
	"leadgen/internal/pkg/worker"
)

// ServiceConfig embeds the common application config for the background task service
type ServiceConfig struct {
	*config.Config
	Tasks       worker.Config      `mapstructure:"tasks"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Archive     ArchiveConfig      `mapstructure:"archive"`
	Admin       AdminConfig        `mapstructure:"admin"`
	Export      ExportConfig       `mapstructure:"export"`
	Recurring   scheduler.Config   `mapstructure:"recurring"`
	Health      HealthConfig       `mapstructure:"health"`
	HTTP        httpclient.Config  `mapstructure:"http_client"`
	Idempotency idempotency.Config `mapstructure:"idempotency"`
}

// MetricsConfig selects where periodic snapshots are published
type MetricsConfig struct {
	Log        bool          `mapstructure:"log"`
	Redis      bool          `mapstructure:"redis"`
	Prometheus bool          `mapstructure:"prometheus"`
	Namespace  string        `mapstructure:"namespace" validate:"required"`
	RedisTTL   time.Duration `mapstructure:"redis_ttl" validate:"min=0"`
}

// ArchiveConfig controls the postgres archive of evicted tasks
type ArchiveConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	BatchSize      int  `mapstructure:"batch_size" validate:"min=1"`
	PurgeAfterDays int  `mapstructure:"purge_after_days" validate:"min=1"`
}

// AdminConfig protects the admin endpoints. An empty secret disables auth.
type AdminConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// SubmitRate limits submissions per client IP per second; 0 disables
	SubmitRate  float64 `mapstructure:"submit_rate" validate:"min=0"`
	SubmitBurst int     `mapstructure:"submit_burst" validate:"min=0"`
}

// ExportConfig points the b2b_export task at the partner endpoint
type ExportConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey   string `mapstructure:"api_key"`
}

// HealthConfig wraps the health service settings
type HealthConfig struct {
	health.ServiceConfig `mapstructure:",squash"`
	// DegradedQueueDepth reports the task manager degraded above this many waiting tasks; 0 disables
	DegradedQueueDepth int `mapstructure:"degraded_queue_depth" validate:"min=0"`
}

// NewServiceConfig decodes the service sections on top of the shared config
func NewServiceConfig(cfg *config.Config, src *config.Source) (*ServiceConfig, error) {
	setDefaults(src)

	serviceCfg := &ServiceConfig{Config: cfg}
	sections := []struct {
		key    string
		target any
	}{
		{"tasks", &serviceCfg.Tasks},
		{"metrics", &serviceCfg.Metrics},
		{"archive", &serviceCfg.Archive},
		{"admin", &serviceCfg.Admin},
		{"export", &serviceCfg.Export},
		{"recurring", &serviceCfg.Recurring},
		{"health", &serviceCfg.Health},
		{"http_client", &serviceCfg.HTTP},
		{"idempotency", &serviceCfg.Idempotency},
	}
	for _, s := range sections {
		if err := src.UnmarshalKey(s.key, s.target); err != nil {
			return nil, err
		}
	}
	return serviceCfg, nil
}

func setDefaults(src *config.Source) {
	tasks := worker.DefaultConfig()
	src.SetDefault("tasks.poll_interval", tasks.PollInterval)
	src.SetDefault("tasks.default_max_retries", tasks.DefaultMaxRetries)
	src.SetDefault("tasks.default_timeout", tasks.DefaultTimeout)
	src.SetDefault("tasks.base_backoff", tasks.BaseBackoff)
	src.SetDefault("tasks.max_backoff", tasks.MaxBackoff)
	src.SetDefault("tasks.maintenance_interval", tasks.MaintenanceInterval)
	src.SetDefault("tasks.retention", tasks.Retention)
	src.SetDefault("tasks.stuck_threshold", tasks.StuckThreshold)
	src.SetDefault("tasks.metrics_interval", tasks.MetricsInterval)
	src.SetDefault("tasks.publish_timeout", tasks.PublishTimeout)
	src.SetDefault("tasks.start_timeout", tasks.StartTimeout)

	src.SetDefault("metrics.log", true)
	src.SetDefault("metrics.redis", true)
	src.SetDefault("metrics.prometheus", true)
	src.SetDefault("metrics.namespace", "leadgen")
	src.SetDefault("metrics.redis_ttl", 5*time.Minute)

	src.SetDefault("archive.enabled", true)
	src.SetDefault("archive.batch_size", 200)
	src.SetDefault("archive.purge_after_days", 30)

	src.SetDefault("admin.jwt_secret", "")
	src.SetDefault("admin.submit_rate", 10)
	src.SetDefault("admin.submit_burst", 20)

	src.SetDefault("export.endpoint", "")
	src.SetDefault("export.api_key", "")

	src.SetDefault("recurring.enabled", false)
	src.SetDefault("recurring.timezone", "UTC")

	hc := health.DefaultServiceConfig()
	src.SetDefault("health.async_mode", hc.AsyncMode)
	src.SetDefault("health.check_interval", hc.CheckInterval)
	src.SetDefault("health.check_timeout", hc.CheckTimeout)
	src.SetDefault("health.strategy", string(hc.Strategy))
	src.SetDefault("health.degraded_queue_depth", 1000)

	hcl := httpclient.DefaultConfig()
	src.SetDefault("http_client.timeout", hcl.Timeout)
	src.SetDefault("http_client.max_idle_conns", hcl.MaxIdleConns)
	src.SetDefault("http_client.idle_conn_timeout", hcl.IdleConnTimeout)

	src.SetDefault("idempotency.ttl", idempotency.DefaultTTL)
}
