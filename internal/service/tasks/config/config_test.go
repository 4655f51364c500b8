package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgconfig "leadgen/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*ServiceConfig, error) {
	t.Helper()
	opts := pkgconfig.Options{ConfigName: "config", ConfigPaths: []string{t.TempDir()}}
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
		opts = pkgconfig.Options{ConfigFile: path}
	}

	src, err := pkgconfig.NewSource(opts)
	require.NoError(t, err)
	cfg, err := pkgconfig.NewConfig(src)
	require.NoError(t, err)
	return NewServiceConfig(cfg, src)
}

func TestNewServiceConfig_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Tasks.PollInterval)
	assert.Equal(t, 3, cfg.Tasks.DefaultMaxRetries)
	assert.Equal(t, 300*time.Second, cfg.Tasks.DefaultTimeout)
	assert.Equal(t, 60*time.Second, cfg.Tasks.MaxBackoff)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.Retention)
	assert.Equal(t, 30*time.Minute, cfg.Tasks.StuckThreshold)

	assert.True(t, cfg.Metrics.Log)
	assert.Equal(t, "leadgen", cfg.Metrics.Namespace)
	assert.Equal(t, 30, cfg.Archive.PurgeAfterDays)
	assert.False(t, cfg.Recurring.Enabled)
	assert.Equal(t, 1000, cfg.Health.DegradedQueueDepth)
	assert.Equal(t, 5*time.Second, cfg.Health.CheckTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, float64(10), cfg.Admin.SubmitRate)
	assert.Equal(t, "leadgen", cfg.App.Name)
}

func TestNewServiceConfig_File(t *testing.T) {
	cfg, err := load(t, `
tasks:
  default_max_retries: 5
  default_timeout: 45s
  base_backoff: 2s
export:
  endpoint: https://partner.example.com/leads
recurring:
  enabled: true
  entries:
    - name: analytics_refresh
      schedule: "@every 1m"
      priority: high
    - name: archive_purge
      schedule: "0 3 * * *"
      priority: low
      max_retries: 0
      args:
        older_than_days: 14
`)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Tasks.DefaultMaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Tasks.DefaultTimeout)
	assert.Equal(t, 2*time.Second, cfg.Tasks.BaseBackoff)
	assert.Equal(t, time.Second, cfg.Tasks.PollInterval)
	assert.Equal(t, "https://partner.example.com/leads", cfg.Export.Endpoint)

	require.Len(t, cfg.Recurring.Entries, 2)
	assert.True(t, cfg.Recurring.Enabled)
	assert.Equal(t, "high", cfg.Recurring.Entries[0].Priority)
	assert.Nil(t, cfg.Recurring.Entries[0].MaxRetries)
	require.NotNil(t, cfg.Recurring.Entries[1].MaxRetries)
	assert.Equal(t, 0, *cfg.Recurring.Entries[1].MaxRetries)
	assert.EqualValues(t, 14, cfg.Recurring.Entries[1].Args["older_than_days"])
}

func TestNewServiceConfig_EnvOverride(t *testing.T) {
	t.Setenv("LEADGEN_TASKS_MAX_BACKOFF", "2m")
	t.Setenv("LEADGEN_ADMIN_JWT_SECRET", "s3cret")

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Tasks.MaxBackoff)
	assert.Equal(t, "s3cret", cfg.Admin.JWTSecret)
}

func TestNewServiceConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad priority", "recurring:\n  entries:\n    - name: a\n      schedule: '@hourly'\n      priority: urgent\n"},
		{"missing schedule", "recurring:\n  entries:\n    - name: a\n"},
		{"backoff cap below base", "tasks:\n  base_backoff: 10s\n  max_backoff: 1s\n"},
		{"bad endpoint", "export:\n  endpoint: not a url\n"},
		{"negative submit rate", "admin:\n  submit_rate: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.yaml)
			assert.Error(t, err)
		})
	}
}
