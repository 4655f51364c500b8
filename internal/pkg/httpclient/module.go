package httpclient

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
)

// Config tunes the outbound client
type Config struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" validate:"min=0"`
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		Timeout:         15 * time.Second,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// New constructs a tuned http.Client. Zero fields fall back to DefaultConfig.
func New(cfg Config) *http.Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// Module provides *http.Client; the application supplies Config.
var Module = fx.Module("httpclient",
	fx.Provide(New),
)
