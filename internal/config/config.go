// Package config provides configuration loading for insightd.
//
// Configuration is read from a YAML file and environment variables, with
// defaults applied for anything left unset.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Provider names shared by several sections.
const (
	ProviderMemory   = "memory"
	ProviderRedis    = "redis"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderNone     = "none"

	ProviderDisabled  = "disabled"
	ProviderService   = "service"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds the complete insightd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Cache      CacheConfig      `koanf:"cache"`
	Messages   MessagesConfig   `koanf:"messages"`
	Refinement RefinementConfig `koanf:"refinement"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ExtractionConfig controls the insight engine.
type ExtractionConfig struct {
	WindowSize  int    `koanf:"window_size"`
	RulesFile   string `koanf:"rules_file"`
	WatchRules  bool   `koanf:"watch_rules"`
	Timezone    string `koanf:"timezone"` // IANA name; calendar day of cache keys
	CachePrefix string `koanf:"cache_prefix"`
}

// Location resolves Timezone, defaulting to UTC.
func (e ExtractionConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

// CacheConfig selects and configures the insight cache store.
type CacheConfig struct {
	Provider   string            `koanf:"provider"` // memory, redis, sqlite, none
	MaxEntries int               `koanf:"max_entries"`
	Redis      RedisCacheConfig  `koanf:"redis"`
	SQLite     SQLiteCacheConfig `koanf:"sqlite"`
}

// RedisCacheConfig holds Redis connection settings.
type RedisCacheConfig struct {
	Addr     string        `koanf:"addr"`
	Password Secret        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// SQLiteCacheConfig holds the cache database location.
type SQLiteCacheConfig struct {
	Path string `koanf:"path"`
}

// MessagesConfig selects the message source.
type MessagesConfig struct {
	Provider string               `koanf:"provider"` // sqlite, postgres
	SQLite   SQLiteMessagesConfig `koanf:"sqlite"`
	Postgres PostgresConfig       `koanf:"postgres"`
}

// SQLiteMessagesConfig holds the message database location.
type SQLiteMessagesConfig struct {
	Path string `koanf:"path"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN     Secret `koanf:"dsn"`
	Migrate bool   `koanf:"migrate"`
}

// RefinementConfig selects the optional refinement provider.
type RefinementConfig struct {
	Provider   string        `koanf:"provider"` // disabled, service, anthropic, openai
	ServiceURL string        `koanf:"service_url"`
	APIKey     Secret        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	RateLimit  float64       `koanf:"rate_limit"` // requests per second
	Burst      int           `koanf:"burst"`
	MaxRetries int           `koanf:"max_retries"`
}

// LoggingConfig holds the logging settings exposed through the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, console
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	ServiceName  string  `koanf:"service_name"`
	Insecure     bool    `koanf:"insecure"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Extraction.WindowSize < 1 {
		return fmt.Errorf("extraction window_size must be positive, got %d", c.Extraction.WindowSize)
	}
	if _, err := c.Extraction.Location(); err != nil {
		return err
	}
	if c.Extraction.WatchRules && c.Extraction.RulesFile == "" {
		return errors.New("extraction watch_rules requires rules_file")
	}

	switch c.Cache.Provider {
	case ProviderMemory, ProviderSQLite, ProviderNone:
	case ProviderRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache redis addr is required when provider is redis")
		}
	default:
		return fmt.Errorf("unknown cache provider %q", c.Cache.Provider)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max_entries cannot be negative, got %d", c.Cache.MaxEntries)
	}

	switch c.Messages.Provider {
	case ProviderSQLite:
		if c.Messages.SQLite.Path == "" {
			return errors.New("messages sqlite path is required")
		}
	case ProviderPostgres:
		if !c.Messages.Postgres.DSN.IsSet() {
			return errors.New("messages postgres dsn is required when provider is postgres")
		}
	default:
		return fmt.Errorf("unknown messages provider %q", c.Messages.Provider)
	}

	switch c.Refinement.Provider {
	case ProviderDisabled:
	case ProviderService:
		if c.Refinement.ServiceURL == "" {
			return errors.New("refinement service_url is required when provider is service")
		}
	case ProviderAnthropic, ProviderOpenAI:
		if !c.Refinement.APIKey.IsSet() {
			return fmt.Errorf("refinement api_key is required when provider is %s", c.Refinement.Provider)
		}
	default:
		return fmt.Errorf("unknown refinement provider %q", c.Refinement.Provider)
	}
	if c.Refinement.RateLimit < 0 {
		return fmt.Errorf("refinement rate_limit cannot be negative, got %f", c.Refinement.RateLimit)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint is required when telemetry is enabled")
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry sampling_rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// Extraction defaults
	if cfg.Extraction.WindowSize == 0 {
		cfg.Extraction.WindowSize = 200
	}
	if cfg.Extraction.CachePrefix == "" {
		cfg.Extraction.CachePrefix = "insight:"
	}

	// Cache defaults (bounded in-process LRU)
	if cfg.Cache.Provider == "" {
		cfg.Cache.Provider = ProviderMemory
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 4096
	}
	if cfg.Cache.SQLite.Path == "" {
		cfg.Cache.SQLite.Path = "~/.local/share/insightd/cache.db"
	}

	// Messages defaults
	if cfg.Messages.Provider == "" {
		cfg.Messages.Provider = ProviderSQLite
	}
	if cfg.Messages.SQLite.Path == "" {
		cfg.Messages.SQLite.Path = "~/.local/share/insightd/messages.db"
	}

	// Refinement defaults
	if cfg.Refinement.Provider == "" {
		cfg.Refinement.Provider = ProviderDisabled
	}
	if cfg.Refinement.Timeout == 0 {
		cfg.Refinement.Timeout = 30 * time.Second
	}
	if cfg.Refinement.RateLimit == 0 {
		cfg.Refinement.RateLimit = 2
	}
	if cfg.Refinement.Burst == 0 {
		cfg.Refinement.Burst = 4
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Telemetry defaults (disabled unless a collector is configured)
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "insightd"
	}
	if cfg.Telemetry.SamplingRate == 0 {
		cfg.Telemetry.SamplingRate = 1.0
	}
}
