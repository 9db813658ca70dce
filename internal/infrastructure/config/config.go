package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration. It is loaded once at startup
// and handed to components as an immutable value; nothing reads the
// environment after load.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host        string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	Environment string `envconfig:"ENV" default:"development" yaml:"environment"`
}

// IsProduction reports whether the server runs with production policy.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production" || s.Environment == "prod"
}

// ProxyConfig holds the fetch policy consumed by the validator and fetcher.
type ProxyConfig struct {
	Timeout        time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s" yaml:"timeout"`
	MaxRedirects   int           `envconfig:"FETCH_MAX_REDIRECTS" default:"5" yaml:"max_redirects"`
	MaxBytes       int64         `envconfig:"FETCH_MAX_BYTES" default:"2097152" yaml:"max_bytes"`
	MaxURLLength   int           `envconfig:"FETCH_MAX_URL_LENGTH" default:"2048" yaml:"max_url_length"`
	AllowHTTPInDev bool          `envconfig:"FETCH_ALLOW_HTTP_DEV" default:"true" yaml:"allow_http_in_dev"`
	UserAgent      string        `envconfig:"FETCH_USER_AGENT" default:"MetascopeBot/1.0 (+https://metascope.dev/bot)" yaml:"user_agent"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
}

// RateLimitConfig holds the edge rate limiter knobs.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// AuthConfig holds the optional shared-secret gate. An empty secret leaves
// the endpoint open.
type AuthConfig struct {
	Secret string `envconfig:"PROXY_SECRET" yaml:"secret"`
}

// Load loads configuration from environment variables, then overlays the
// YAML file named by CONFIG_FILE when set.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the tag defaults with no environment applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			Environment: "development",
		},
		Proxy: ProxyConfig{
			Timeout:        10 * time.Second,
			MaxRedirects:   5,
			MaxBytes:       2 << 20,
			MaxURLLength:   2048,
			AllowHTTPInDev: true,
			UserAgent:      "MetascopeBot/1.0 (+https://metascope.dev/bot)",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// overlayFile applies a YAML config file on top of the loaded values. Only
// keys present in the file are overridden.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
