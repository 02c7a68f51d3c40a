// Package config loads the offline proxy configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/edgeup-ai/offline-router/pkg/client"
	"github.com/edgeup-ai/offline-router/pkg/logging"
	"github.com/edgeup-ai/offline-router/pkg/router"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the process configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080" validate:"required"`
	OriginURL  string `env:"ORIGIN_URL,required" validate:"required,url"`

	CachePrefix   string   `env:"CACHE_PREFIX" envDefault:"edgeup" validate:"required"`
	CacheVersion  string   `env:"CACHE_VERSION" envDefault:"v1" validate:"required"`
	OwnedPrefixes []string `env:"OWNED_CACHE_PREFIXES" envDefault:"edgeup-,workbox-" envSeparator:","`
	WriteMode     string   `env:"CACHE_WRITE_MODE" envDefault:"async" validate:"oneof=async sync"`

	// PartitionHeaders scope dynamic entries per credential. SingleUser
	// turns partitioning off for a proxy that serves one browser.
	PartitionHeaders []string `env:"CACHE_PARTITION_HEADERS" envDefault:"Authorization,Cookie" envSeparator:","`
	SingleUser       bool     `env:"CACHE_SINGLE_USER" envDefault:"false"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory" validate:"oneof=memory redis sqlite"`
	RedisURL       string `env:"REDIS_URL" envDefault:"localhost:6379" validate:"required_if=StorageBackend redis"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"edgeup-cache.db" validate:"required_if=StorageBackend sqlite"`

	UpstreamTimeout     time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s" validate:"gte=0"`
	UpstreamMaxRetries  int           `env:"UPSTREAM_MAX_RETRIES" envDefault:"0" validate:"gte=0,lte=10"`
	PrecacheConcurrency int           `env:"PRECACHE_CONCURRENCY" envDefault:"4" validate:"gte=1,lte=64"`

	// SyncSchedule is a cron spec for the background-sync event; empty disables it.
	SyncSchedule string `env:"SYNC_SCHEDULE"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

var validate = validator.New()

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the origin URL.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Origin(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Origin parses OriginURL.
func (c Config) Origin() (*url.URL, error) {
	u, err := url.Parse(c.OriginURL)
	if err != nil {
		return nil, fmt.Errorf("parse ORIGIN_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ORIGIN_URL must be http or https (got %q)", u.Scheme)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("ORIGIN_URL must not have a path (got %q)", u.Path)
	}
	u.Path = ""
	return u, nil
}

// Router builds the router configuration.
func (c Config) Router() (router.Config, error) {
	origin, err := c.Origin()
	if err != nil {
		return router.Config{}, err
	}
	rc := router.DefaultConfig(origin)
	rc.CachePrefix = c.CachePrefix
	rc.Version = c.CacheVersion
	rc.OwnedPrefixes = c.OwnedPrefixes
	rc.WriteMode = router.WriteMode(c.WriteMode)
	rc.PartitionHeaders = c.PartitionHeaders
	if c.SingleUser {
		rc.PartitionHeaders = nil
	}
	rc.PrecacheConcurrency = c.PrecacheConcurrency
	rc.PrecacheTimeout = c.UpstreamTimeout
	return rc, nil
}

// Client builds the origin client configuration.
func (c Config) Client() client.Config {
	cc := client.DefaultConfig()
	cc.Timeout = c.UpstreamTimeout
	cc.Retry.MaxAttempts = c.UpstreamMaxRetries + 1
	return cc
}

// Logging builds the logger configuration.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Pretty = c.LogPretty
	return lc
}
