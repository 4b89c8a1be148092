// Package config loads the service configuration from the environment.
//
// A .env file in the working directory (or the paths passed to Load) is read
// first when present; real environment variables always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/skillhub/internal/stats"
	"github.com/dmitrymomot/skillhub/pkg/httpserver"
	"github.com/dmitrymomot/skillhub/pkg/pg"
	"github.com/dmitrymomot/skillhub/pkg/ratelimit"
	"github.com/dmitrymomot/skillhub/pkg/redis"
	"github.com/dmitrymomot/skillhub/pkg/sse"
)

// PubSubBackend selects the transport behind the pub/sub bridge.
type PubSubBackend string

const (
	PubSubPostgres PubSubBackend = "postgres"
	PubSubRedis    PubSubBackend = "redis"
	PubSubMemory   PubSubBackend = "memory"
)

// Environment represents application environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

var (
	ErrParsingConfig         = errors.New("failed to parse environment variables into config")
	ErrUnknownPubSubBackend  = errors.New("unknown pub/sub backend")
	ErrUnknownEnvironment    = errors.New("unknown application environment")
	ErrUnknownRateLimitStore = errors.New("unknown rate limit store")
)

// Config is the root configuration composed of the per-package configs.
type Config struct {
	AppName  string      `env:"APP_NAME" envDefault:"skillhub"`
	AppEnv   Environment `env:"APP_ENV" envDefault:"development"`
	LogLevel string      `env:"LOG_LEVEL" envDefault:"info"`

	PubSubBackend PubSubBackend `env:"PUBSUB_BACKEND" envDefault:"postgres"`
	// RateLimitStore is "memory" or "redis".
	RateLimitStore string `env:"RATE_LIMIT_STORE" envDefault:"memory"`

	HTTP      httpserver.Config
	Postgres  pg.Config
	Redis     redis.Config
	RateLimit ratelimit.Config
	SSE       sse.Config
	Stats     stats.Config
}

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.PubSubBackend == PubSubRedis || c.RateLimitStore == "redis"
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return c.AppEnv == Production
}

// Validate checks the values env tags cannot express.
func (c Config) Validate() error {
	if !slices.Contains([]PubSubBackend{PubSubPostgres, PubSubRedis, PubSubMemory}, c.PubSubBackend) {
		return fmt.Errorf("%w: %q", ErrUnknownPubSubBackend, c.PubSubBackend)
	}
	if !slices.Contains([]Environment{Development, Staging, Production}, c.AppEnv) {
		return fmt.Errorf("%w: %q", ErrUnknownEnvironment, c.AppEnv)
	}
	if c.RateLimitStore != "memory" && c.RateLimitStore != "redis" {
		return fmt.Errorf("%w: %q", ErrUnknownRateLimitStore, c.RateLimitStore)
	}
	return nil
}

// Load reads the optional env files and parses the environment into Config.
// Without paths it looks for ".env" in the working directory. Missing files
// are skipped; variables already set in the process are never overwritten.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", p, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad(paths ...string) Config {
	cfg, err := Load(paths...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return cfg
}
