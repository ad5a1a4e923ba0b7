// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/config

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Ranking.Lambda != 0.7 {
		t.Errorf("ranking lambda = %v, want 0.7", cfg.Ranking.Lambda)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8460 {
		t.Errorf("server port = %d, want 8460", cfg.Server.Port)
	}
	if cfg.Scheduler.MaxConcurrentJobs != 5 {
		t.Errorf("max concurrent jobs = %d, want 5", cfg.Scheduler.MaxConcurrentJobs)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RANKING_LAMBDA", "0.5")
	t.Setenv("SCHEDULER_JOB_TIMEOUT", "10s")
	t.Setenv("CACHE_BACKEND", "badger")
	t.Setenv("CACHE_PATH", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("server port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Ranking.Lambda != 0.5 {
		t.Errorf("ranking lambda = %v, want 0.5", cfg.Ranking.Lambda)
	}
	if cfg.Scheduler.JobTimeout != 10*time.Second {
		t.Errorf("job timeout = %v, want 10s", cfg.Scheduler.JobTimeout)
	}
	if cfg.Cache.Backend != CacheBackendBadger {
		t.Errorf("cache backend = %q, want badger", cfg.Cache.Backend)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("server:\n  port: 7777\nquality:\n  spam_threshold: 0.2\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("server port = %d, want 7777 from file", cfg.Server.Port)
	}
	if cfg.Quality.SpamThreshold != 0.2 {
		t.Errorf("spam threshold = %v, want 0.2 from file", cfg.Quality.SpamThreshold)
	}
	// Untouched sections keep defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want default info", cfg.Logging.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7777\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("server port = %d, env must beat file", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"lambda above one", func(c *Config) { c.Ranking.Lambda = 1.5 }},
		{"negative spam threshold", func(c *Config) { c.Quality.SpamThreshold = -0.1 }},
		{"zero embedding dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "redis" }},
		{"badger without path", func(c *Config) {
			c.Cache.Backend = CacheBackendBadger
			c.Cache.Path = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted a bad config")
			}
		})
	}
}
