// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/config

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first found
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tidefeed/config.yaml",
	"/etc/tidefeed/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from three layers, later layers
// overriding earlier ones:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names onto config paths.
// Unmapped variables are skipped so unrelated environment entries do
// not pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Embedding store
		"embedding_capacity":          "embedding.capacity",
		"embedding_dimension":         "embedding.dimension",
		"embedding_expiry":            "embedding.expiry",
		"embedding_memory_ceiling_mb": "embedding.memory_ceiling_mb",
		"embedding_seed":              "embedding.seed",

		// Ranking
		"ranking_lambda":               "ranking.lambda",
		"ranking_max_results":          "ranking.max_results",
		"ranking_similarity_threshold": "ranking.similarity_threshold",
		"ranking_performance_target":   "ranking.performance_target",
		"ranking_cache_size":           "ranking.cache_size",
		"ranking_method":               "ranking.method",

		// Injection
		"injection_serendipity_quality_floor": "injection.serendipity_quality_floor",
		"injection_fresh_window":              "injection.fresh_window",
		"injection_seed":                      "injection.seed",

		// Quality
		"quality_safety_threshold":  "quality.safety_threshold",
		"quality_spam_threshold":    "quality.spam_threshold",
		"quality_quality_threshold": "quality.quality_threshold",
		"quality_feedback_weight":   "quality.feedback_weight",
		"quality_cache_size":        "quality.cache_size",
		"quality_cache_ttl":         "quality.cache_ttl",

		// Scheduler
		"scheduler_max_concurrent_jobs": "scheduler.max_concurrent_jobs",
		"scheduler_job_timeout":         "scheduler.job_timeout",
		"scheduler_retry_attempts":      "scheduler.retry_attempts",
		"scheduler_retry_delay":         "scheduler.retry_delay",
		"scheduler_poll_interval":       "scheduler.poll_interval",
		"scheduler_prediction_interval": "scheduler.prediction_interval",

		// Event router
		"events_close_timeout":          "events.close_timeout",
		"events_retry_max_retries":      "events.retry_max_retries",
		"events_retry_initial_interval": "events.retry_initial_interval",
		"events_retry_max_interval":     "events.retry_max_interval",
		"events_retry_multiplier":       "events.retry_multiplier",
		"events_poison_topic":           "events.poison_topic",

		// Timeline cache
		"cache_backend":         "cache.backend",
		"cache_path":            "cache.path",
		"cache_ttl":             "cache.ttl",
		"cache_capacity":        "cache.capacity",
		"cache_breaker_enabled": "cache.breaker_enabled",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
