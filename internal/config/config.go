// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/config

package config

import (
	"fmt"
	"time"

	"github.com/tidefeed/tidefeed/internal/embedding"
	"github.com/tidefeed/tidefeed/internal/events"
	"github.com/tidefeed/tidefeed/internal/feed/injection"
	"github.com/tidefeed/tidefeed/internal/feed/quality"
	"github.com/tidefeed/tidefeed/internal/feed/ranking"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/scheduler"
)

// Config is the full application configuration, layered from defaults,
// an optional YAML file, and environment variables.
type Config struct {
	Server    ServerConfig        `koanf:"server"`
	Logging   LoggingConfig       `koanf:"logging"`
	Embedding EmbeddingConfig     `koanf:"embedding"`
	Ranking   ranking.Config      `koanf:"ranking"`
	Injection injection.Config    `koanf:"injection"`
	Quality   quality.Config      `koanf:"quality"`
	Scheduler scheduler.Config    `koanf:"scheduler"`
	Events    events.RouterConfig `koanf:"events"`
	Cache     CacheConfig         `koanf:"cache"`
}

// ServerConfig holds the HTTP serving surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line in log output.
	Caller bool `koanf:"caller"`
}

// LoggerConfig converts to the logging package's configuration.
func (c LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:     c.Level,
		Format:    c.Format,
		Caller:    c.Caller,
		Timestamp: true,
	}
}

// EmbeddingConfig holds embedding store settings.
type EmbeddingConfig struct {
	// Capacity is the per-entity-type store capacity.
	Capacity int `koanf:"capacity"`

	// Dimension is the vector length.
	Dimension int `koanf:"dimension"`

	// Expiry is the base lifetime of an untouched entry.
	Expiry time.Duration `koanf:"expiry"`

	// MemoryCeilingMB is the aggregate memory budget across stores.
	MemoryCeilingMB int64 `koanf:"memory_ceiling_mb"`

	// Seed drives deterministic vector synthesis; zero picks a fixed
	// default.
	Seed int64 `koanf:"seed"`
}

// ManagerConfig converts to the embedding package's configuration.
func (c EmbeddingConfig) ManagerConfig() embedding.ManagerConfig {
	store := embedding.DefaultStoreConfig()
	store.Capacity = c.Capacity
	store.Dimension = c.Dimension
	if c.Expiry > 0 {
		store.Expiry = c.Expiry
	}
	return embedding.ManagerConfig{
		Store:                    store,
		SystemMemoryCeilingBytes: c.MemoryCeilingMB << 20,
		Seed:                     c.Seed,
	}
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

// CacheConfig holds timeline result cache settings.
type CacheConfig struct {
	// Backend is memory or badger.
	Backend string `koanf:"backend"`

	// Path is the badger data directory; ignored for the memory
	// backend.
	Path string `koanf:"path"`

	// TTL bounds the staleness of cached timelines.
	TTL time.Duration `koanf:"ttl"`

	// Capacity bounds the memory backend's entry count.
	Capacity int `koanf:"capacity"`

	// BreakerEnabled wraps the backend in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// Default returns the built-in configuration, the base layer for file
// and environment overrides.
func Default() *Config {
	embDefaults := embedding.DefaultStoreConfig()
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8460,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Embedding: EmbeddingConfig{
			Capacity:        embDefaults.Capacity,
			Dimension:       embDefaults.Dimension,
			Expiry:          embDefaults.Expiry,
			MemoryCeilingMB: 512,
		},
		Ranking:   ranking.DefaultConfig(),
		Injection: injection.DefaultConfig(),
		Quality:   quality.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Events:    events.DefaultRouterConfig(),
		Cache: CacheConfig{
			Backend:        CacheBackendMemory,
			Path:           "/data/timelines",
			TTL:            15 * time.Minute,
			Capacity:       10000,
			BreakerEnabled: true,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("config: server.timeout must be positive")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown logging.format %q", c.Logging.Format)
	}

	if c.Embedding.Capacity <= 0 {
		return fmt.Errorf("config: embedding.capacity must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config: embedding.dimension must be positive")
	}

	if c.Ranking.Lambda < 0 || c.Ranking.Lambda > 1 {
		return fmt.Errorf("config: ranking.lambda %v out of [0,1]", c.Ranking.Lambda)
	}
	if c.Ranking.MaxResults <= 0 {
		return fmt.Errorf("config: ranking.max_results must be positive")
	}

	for _, field := range []struct {
		name  string
		value float64
	}{
		{"quality.safety_threshold", c.Quality.SafetyThreshold},
		{"quality.spam_threshold", c.Quality.SpamThreshold},
		{"quality.quality_threshold", c.Quality.QualityThreshold},
		{"injection.serendipity_quality_floor", c.Injection.SerendipityQualityFloor},
	} {
		if field.value < 0 || field.value > 1 {
			return fmt.Errorf("config: %s %v out of [0,1]", field.name, field.value)
		}
	}

	if c.Scheduler.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("config: scheduler.max_concurrent_jobs must be positive")
	}
	if c.Scheduler.JobTimeout <= 0 {
		return fmt.Errorf("config: scheduler.job_timeout must be positive")
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendBadger:
	default:
		return fmt.Errorf("config: unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheBackendBadger && c.Cache.Path == "" {
		return fmt.Errorf("config: cache.path required for badger backend")
	}

	return nil
}
