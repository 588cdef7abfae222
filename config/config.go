// Package config loads the backtester's YAML configuration, with .env
// and environment-variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete backtester configuration.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
}

// RedisConfig addresses the single Redis instance backing the Bus, Task
// Store, Quotes Service queues/replies, Results Publisher streams and
// Progress/Control Channel.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig controls where bars are durably persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite path, or ":memory:"
}

// EngineConfig controls timing for the Quotes Service and Backtesting
// Driver.
type EngineConfig struct {
	QuotesRequestTimeoutSeconds int `yaml:"quotes_request_timeout_seconds"`
	SavePeriodSeconds           int `yaml:"save_period_seconds"`
	GapFetchBatchSize           int `yaml:"gap_fetch_batch_size"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads config from the YAML file at path, after loading a .env file
// from the working directory (if present) into the environment; env vars
// win over the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// QuotesRequestTimeout returns the Quotes Client's reply-wait timeout.
func (c *Config) QuotesRequestTimeout() time.Duration {
	return time.Duration(c.Engine.QuotesRequestTimeoutSeconds) * time.Second
}

// SavePeriod returns the Backtesting Driver's publish/stop-poll interval.
func (c *Config) SavePeriod() time.Duration {
	return time.Duration(c.Engine.SavePeriodSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "quantrail.db"
	}
	if cfg.Engine.QuotesRequestTimeoutSeconds <= 0 {
		cfg.Engine.QuotesRequestTimeoutSeconds = 30
	}
	if cfg.Engine.SavePeriodSeconds <= 0 {
		cfg.Engine.SavePeriodSeconds = 5
	}
	if cfg.Engine.GapFetchBatchSize <= 0 {
		cfg.Engine.GapFetchBatchSize = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
