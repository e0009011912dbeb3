// Package config loads cardfetch configuration from an optional YAML
// file with CARDFETCH_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Client  ClientConfig  `mapstructure:"client"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig configures the cardfetch service.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	UpstreamURL       string        `mapstructure:"upstream_url"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CacheSize         int           `mapstructure:"cache_size"`
	QueueSize         int           `mapstructure:"queue_size"`
	BatchSize         int           `mapstructure:"batch_size"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
	RequestDelay      time.Duration `mapstructure:"request_delay"`
	RateLimit         int           `mapstructure:"rate_limit"`
	RatePeriod        time.Duration `mapstructure:"rate_period"`

	// RedisAddr switches the card cache from in-memory to Redis when set.
	RedisAddr string `mapstructure:"redis_addr"`
}

// ClientConfig configures the submission/polling client.
type ClientConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// PollTimeout bounds total polling per batch; zero disables the cap.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the built-in defaults, matching the reference
// service parameters.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			UpstreamURL:       "https://api.scryfall.com/cards/named",
			CacheTTL:          24 * time.Hour,
			CacheSize:         1000,
			QueueSize:         1000,
			BatchSize:         10,
			WorkerConcurrency: 5,
			RequestDelay:      100 * time.Millisecond,
			RateLimit:         10,
			RatePeriod:        60 * time.Second,
		},
		Client: ClientConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      30 * time.Second,
			PollInterval: 1 * time.Second,
			PollTimeout:  0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load reads configuration from the given file path. An empty path
// loads pure defaults plus environment overrides. A missing explicit
// file is an error; a malformed one too.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CARDFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Server.BatchSize <= 0 {
		return fmt.Errorf("server.batch_size must be positive (got %d)", c.Server.BatchSize)
	}
	if c.Server.QueueSize <= 0 {
		return fmt.Errorf("server.queue_size must be positive (got %d)", c.Server.QueueSize)
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be positive (got %s)", c.Client.PollInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.upstream_url", def.Server.UpstreamURL)
	v.SetDefault("server.cache_ttl", def.Server.CacheTTL)
	v.SetDefault("server.cache_size", def.Server.CacheSize)
	v.SetDefault("server.queue_size", def.Server.QueueSize)
	v.SetDefault("server.batch_size", def.Server.BatchSize)
	v.SetDefault("server.worker_concurrency", def.Server.WorkerConcurrency)
	v.SetDefault("server.request_delay", def.Server.RequestDelay)
	v.SetDefault("server.rate_limit", def.Server.RateLimit)
	v.SetDefault("server.rate_period", def.Server.RatePeriod)
	v.SetDefault("server.redis_addr", "")
	v.SetDefault("client.base_url", def.Client.BaseURL)
	v.SetDefault("client.timeout", def.Client.Timeout)
	v.SetDefault("client.poll_interval", def.Client.PollInterval)
	v.SetDefault("client.poll_timeout", def.Client.PollTimeout)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.pretty", def.Logging.Pretty)
}
