package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the runtime configuration of the levered service and CLI.
type Config struct {
	Log    LogConfig    `json:"log" yaml:"log"`
	Store  StoreConfig  `json:"store" yaml:"store"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch"`
	Server ServerConfig `json:"server" yaml:"server"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// StoreConfig contains persistence parameters
type StoreConfig struct {
	Driver       string        `json:"driver" yaml:"driver"` // "sqlite3" or "postgres"
	DSN          string        `json:"dsn" yaml:"dsn"`
	QueryTimeout time.Duration `json:"query_timeout" yaml:"query_timeout"`
	Retry        RetryConfig   `json:"retry" yaml:"retry"`
}

// RetryConfig is the retry policy applied around every repository call.
type RetryConfig struct {
	Attempts int           `json:"attempts" yaml:"attempts"`
	Backoff  time.Duration `json:"backoff" yaml:"backoff"`
	// BreakerFailures is the number of consecutive failed calls that opens
	// the store circuit breaker.
	BreakerFailures uint32        `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `json:"breaker_timeout" yaml:"breaker_timeout"`
}

// CacheConfig enables the Redis price history cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

// FetchConfig bounds how proposal inputs are loaded from the store.
type FetchConfig struct {
	Concurrency  int     `json:"concurrency" yaml:"concurrency"`
	RatePerSec   float64 `json:"rate_per_sec" yaml:"rate_per_sec"`
	HistoryLimit int     `json:"history_limit" yaml:"history_limit"`
}

// ServerConfig contains HTTP API parameters
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	return save(path, c)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log.level", Msg: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	if c.Log.Format != "" && c.Log.Format != "console" && c.Log.Format != "json" {
		return &ValidationError{Field: "log.format", Msg: "must be 'console' or 'json'"}
	}
	if c.Store.Driver != "sqlite3" && c.Store.Driver != "postgres" {
		return &ValidationError{Field: "store.driver", Msg: "must be 'sqlite3' or 'postgres'"}
	}
	if c.Store.DSN == "" {
		return &ValidationError{Field: "store.dsn", Msg: "is required"}
	}
	if c.Store.QueryTimeout <= 0 {
		return &ValidationError{Field: "store.query_timeout", Msg: "must be positive"}
	}
	if c.Store.Retry.Attempts < 1 {
		return &ValidationError{Field: "store.retry.attempts", Msg: "must be at least 1"}
	}
	if c.Store.Retry.Backoff < 0 {
		return &ValidationError{Field: "store.retry.backoff", Msg: "must be >= 0"}
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return &ValidationError{Field: "cache.ttl", Msg: "must be positive when redis_addr is set"}
	}
	if c.Fetch.Concurrency < 1 {
		return &ValidationError{Field: "fetch.concurrency", Msg: "must be at least 1"}
	}
	if c.Fetch.RatePerSec < 0 {
		return &ValidationError{Field: "fetch.rate_per_sec", Msg: "must be >= 0"}
	}
	if c.Fetch.HistoryLimit < MinHistory+1 {
		return &ValidationError{Field: "fetch.history_limit", Msg: fmt.Sprintf("must be at least %d", MinHistory+1)}
	}
	if c.Server.Addr == "" {
		return &ValidationError{Field: "server.addr", Msg: "is required"}
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Driver:       "sqlite3",
			DSN:          "./levered.sqlite",
			QueryTimeout: 5 * time.Second,
			Retry: RetryConfig{
				Attempts:        3,
				Backoff:         200 * time.Millisecond,
				BreakerFailures: 5,
				BreakerTimeout:  30 * time.Second,
			},
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Fetch: FetchConfig{
			Concurrency:  4,
			RatePerSec:   0,
			HistoryLimit: 252,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func unmarshal(data []byte, v any) error {
	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, v); err != nil {
		if jerr := json.Unmarshal(data, v); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

func save(path string, v any) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
