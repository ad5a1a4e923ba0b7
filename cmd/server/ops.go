// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/cmd/server

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidefeed/tidefeed/internal/embedding"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/middleware"
	"github.com/tidefeed/tidefeed/internal/timelinecache"
)

// healthProbeTimeout bounds the cache round trip in the health check.
const healthProbeTimeout = 2 * time.Second

// healthResponse is the /healthz payload.
type healthResponse struct {
	Status     string `json:"status"`
	Embeddings bool   `json:"embeddings"`
	Cache      bool   `json:"cache"`
}

// newOpsRouter builds the operational HTTP surface: health and
// Prometheus metrics. The feed itself is not served over HTTP; this
// process precomputes timelines consumed through the result cache.
func newOpsRouter(manager *embedding.Manager, cache timelinecache.Cache) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PrometheusMetrics)
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/healthz", handleHealth(manager, cache))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// handleHealth reports embedding store health and cache reachability.
// Degraded components yield 503 so orchestrators can restart or drain
// the instance.
func handleHealth(manager *embedding.Manager, cache timelinecache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:     "ok",
			Embeddings: manager.Healthy(),
			Cache:      probeCache(r.Context(), cache),
		}

		status := http.StatusOK
		if !resp.Embeddings || !resp.Cache {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger := logging.Ctx(r.Context())
			logger.Error().Err(err).Msg("encode health response")
		}
	}
}

// probeCache performs a read for a key that cannot exist. A healthy
// backend answers ErrNotFound; anything else (badger failure, open
// circuit breaker) marks the cache degraded.
func probeCache(ctx context.Context, cache timelinecache.Cache) bool {
	if cache == nil {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	_, err := cache.Get(probeCtx, "healthz-probe")
	return err == nil || errors.Is(err, timelinecache.ErrNotFound)
}
