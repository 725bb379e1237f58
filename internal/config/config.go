// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Pages         PagesConfig         `yaml:"pages"`
	Auth          AuthConfig          `yaml:"auth"`
	Query         QueryConfig         `yaml:"query"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// PagesConfig describes where to find page configuration files.
type PagesConfig struct {
	Directories []string `yaml:"directories"`
	HotReload   bool     `yaml:"hot_reload"`
}

// AuthConfig describes bearer token settings. When Enabled is false every
// request is anonymous.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
	Issuer  string `yaml:"issuer"`
}

// QueryConfig describes the remote query engine defaults.
type QueryConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// IdempotencyConfig selects the action result store.
type IdempotencyConfig struct {
	Store string        `yaml:"store"`
	TTL   time.Duration `yaml:"ttl"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig describes the Redis connection for the idempotency store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes OpenTelemetry trace export.
type TracingConfig struct {
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type",
					"X-Correlation-Id", "X-Idempotency-Key"},
				MaxAge: 86400,
			},
		},
		Pages: PagesConfig{
			Directories: []string{"/pages"},
		},
		Query: QueryConfig{
			DefaultTimeout: 10 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			Store: "memory",
			TTL:   time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if len(c.Pages.Directories) == 0 {
		errs = append(errs, "pages.directories is required")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		errs = append(errs, "auth.secret is required when auth is enabled")
	}
	switch c.Idempotency.Store {
	case "memory":
	case "redis":
		if c.Idempotency.Redis.Addr == "" {
			errs = append(errs, "idempotency.redis.addr is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("idempotency.store %q is not supported", c.Idempotency.Store))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads JSONPAGE_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JSONPAGE_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JSONPAGE_PAGES_DIRECTORIES"); v != "" {
		cfg.Pages.Directories = strings.Split(v, ",")
	}
	if v := os.Getenv("JSONPAGE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
		cfg.Auth.Enabled = true
	}
	if v := os.Getenv("JSONPAGE_IDEMPOTENCY_REDIS_ADDR"); v != "" {
		cfg.Idempotency.Store = "redis"
		cfg.Idempotency.Redis.Addr = v
	}
	if v := os.Getenv("JSONPAGE_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
