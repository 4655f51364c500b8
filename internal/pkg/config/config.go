package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (LEADGEN_SERVER_PORT, ...)
const EnvPrefix = "LEADGEN"

// Config holds the configuration shared by every service binary
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// AppConfig identifies the running process
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"oneof=development staging production test"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    int    `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname" validate:"required"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" validate:"min=0"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres URL form used by golang-migrate
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	PoolSize int    `mapstructure:"pool_size" validate:"min=0"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

// Options controls where a Source looks for its file
type Options struct {
	ConfigName  string
	ConfigPaths []string
	ConfigFile  string
}

// DefaultOptions looks for config.yaml next to the binary and in ./config
func DefaultOptions() Options {
	return Options{
		ConfigName:  "config",
		ConfigPaths: []string{"./config", ".", "../../config"},
	}
}

// Source wraps a viper instance so services can decode their own sections
// with the same precedence rules: env > file > defaults.
type Source struct {
	v        *viper.Viper
	validate *validator.Validate
}

// NewSource reads the configuration file (if any) and wires env overrides
func NewSource(opts Options) (*Source, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(opts.ConfigName)
		v.SetConfigType("yaml")
		for _, p := range opts.ConfigPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || opts.ConfigFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Source{v: v, validate: validator.New()}, nil
}

// SetDefault registers a default so the key is also visible to env overrides
func (s *Source) SetDefault(key string, value any) {
	s.v.SetDefault(key, value)
}

// Unmarshal decodes every setting into target and validates it
func (s *Source) Unmarshal(target any) error {
	return s.decode(s.v.AllSettings(), target)
}

// UnmarshalKey decodes one top-level section into target and validates it
func (s *Source) UnmarshalKey(key string, target any) error {
	section, ok := s.v.AllSettings()[strings.ToLower(key)]
	if !ok {
		section = map[string]any{}
	}
	if err := s.decode(section, target); err != nil {
		return fmt.Errorf("section %q: %w", key, err)
	}
	return nil
}

func (s *Source) decode(input, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.validate.Struct(target); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// NewConfig decodes the shared configuration from the source
func NewConfig(src *Source) (*Config, error) {
	var cfg Config
	if err := src.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "leadgen")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "leadgen")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")
}
