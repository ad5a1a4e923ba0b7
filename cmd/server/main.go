// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/cmd/server

// Package main is the entry point for the Tidefeed server.
//
// Tidefeed is the personalization and ranking core of a social feed:
// it assesses content quality, diversifies ranked candidates with MMR,
// injects discovery signals, and precomputes user timelines in the
// background.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment
//     variables (Koanf v2)
//  2. Embedding manager: per-entity-type vector stores with bounded
//     capacity and retention-scored eviction
//  3. Timeline cache: in-memory or BadgerDB-backed result cache,
//     optionally wrapped in a circuit breaker
//  4. Feed pipeline: quality assessment, MMR diversification, and
//     multi-signal injection
//  5. Scheduler: background timeline precomputation with activity
//     prediction and refresh triggers
//  6. Events: in-process engagement and feedback consumption feeding
//     the velocity tracker, quality pipeline, and refresh triggers
//  7. HTTP server: operational endpoints (/healthz, /metrics)
//
// All long-running components run under a suture supervisor tree and
// restart independently on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HTTP_PORT, LOG_LEVEL, CACHE_BACKEND, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree drains, the HTTP server stops accepting connections
// and waits for in-flight requests, and the cache backend is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tidefeed/tidefeed/internal/config"
	"github.com/tidefeed/tidefeed/internal/embedding"
	"github.com/tidefeed/tidefeed/internal/events"
	"github.com/tidefeed/tidefeed/internal/feed/injection"
	"github.com/tidefeed/tidefeed/internal/feed/pipeline"
	"github.com/tidefeed/tidefeed/internal/feed/quality"
	"github.com/tidefeed/tidefeed/internal/feed/ranking"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/scheduler"
	"github.com/tidefeed/tidefeed/internal/supervisor"
	"github.com/tidefeed/tidefeed/internal/supervisor/services"
	"github.com/tidefeed/tidefeed/internal/timelinecache"
)

// velocityMaxKeys bounds the engagement velocity tracker's key space.
const velocityMaxKeys = 100_000

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.LoggerConfig())

	logging.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Int("port", cfg.Server.Port).
		Msg("Configuration loaded")

	manager, err := embedding.NewManager(cfg.Embedding.ManagerConfig(), logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize embedding manager")
	}

	cache, badgerDB, err := buildCache(cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize timeline cache")
	}
	if badgerDB != nil {
		defer func() {
			if err := badgerDB.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing cache database")
			}
		}()
	}

	// Feed pipeline stages.
	velocity := injection.NewVelocityTracker(velocityMaxKeys)
	injector := injection.NewInjector(cfg.Injection, velocity)
	diversifier := ranking.NewDiversifier(cfg.Ranking, managerVectors{manager})
	qualityPipeline := quality.NewPipeline(cfg.Quality, nil, nil)
	feedPipeline := pipeline.New(qualityPipeline, diversifier, injector, manager)

	source := newMemorySource()
	sched := scheduler.New(cfg.Scheduler, source, feedPipeline, cache)

	// Event processing: engagement and feedback feed the velocity
	// tracker, the quality pipeline, and refresh triggers.
	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	eventRouter, err := events.NewRouter(cfg.Events, bus.Publisher())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event router")
	}
	consumer := events.NewConsumer(qualityPipeline, velocity, sched)
	consumer.Register(eventRouter, bus.Subscriber())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// zerolog is bridged to slog for sutureslog compatibility.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(services.NewMaintenanceService("embedding-sweep", 10*time.Minute, func(_ context.Context) {
		if removed := manager.Sweep(); removed > 0 {
			logging.Debug().Int("removed", removed).Msg("Embedding sweep completed")
		}
	}))
	tree.AddDataService(services.NewMaintenanceService("velocity-cleanup", 5*time.Minute, func(_ context.Context) {
		velocity.CleanupInactive()
	}))

	tree.AddProcessingService(sched)
	tree.AddProcessingService(eventRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newOpsRouter(manager, cache),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildCache constructs the timeline cache backend from configuration.
// The returned badger.DB is non-nil only for the badger backend and
// must be closed by the caller.
func buildCache(cfg config.CacheConfig) (timelinecache.Cache, *badger.DB, error) {
	var cache timelinecache.Cache
	var db *badger.DB

	switch cfg.Backend {
	case config.CacheBackendBadger:
		opts := badger.DefaultOptions(cfg.Path)
		opts.Logger = nil // Suppress BadgerDB logs

		var err error
		db, err = badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger db for timeline cache: %w", err)
		}
		cache = timelinecache.NewBadgerCache(db, cfg.TTL)

	default:
		cache = timelinecache.NewMemoryCache(cfg.Capacity, cfg.TTL)
	}

	if cfg.BreakerEnabled {
		cache = timelinecache.NewBreakerCache(cache)
	}
	return cache, db, nil
}

// managerVectors adapts the embedding manager's content namespace to
// the ranking package's vector lookup interface.
type managerVectors struct {
	m *embedding.Manager
}

func (v managerVectors) ContentVector(id string) ([]float64, bool) {
	return v.m.Get(embedding.EntityContent, id)
}
