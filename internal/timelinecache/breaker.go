// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/timelinecache

package timelinecache

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/metrics"
)

// BreakerCache wraps another Cache with a circuit breaker so a failing
// cache backend cannot stall timeline serving. A missing entry is not a
// backend failure and never trips the breaker.
type BreakerCache struct {
	inner Cache
	cb    *gobreaker.CircuitBreaker[*feed.TimelineResult]
}

// NewBreakerCache wraps a cache with circuit breaker protection.
// The breaker opens after a 60% failure rate over at least 10 requests
// and probes recovery after 30 seconds.
func NewBreakerCache(inner Cache) *BreakerCache {
	logger := logging.With().Str("component", "timelinecache").Logger()

	cb := gobreaker.NewCircuitBreaker[*feed.TimelineResult](gobreaker.Settings{
		Name:        "timeline-cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache circuit breaker state change")
		},
	})

	return &BreakerCache{inner: inner, cb: cb}
}

// Get returns the cached timeline through the breaker. When the breaker
// is open the result is ErrNotFound, degrading to a fresh build.
func (c *BreakerCache) Get(ctx context.Context, userID string) (*feed.TimelineResult, error) {
	result, err := c.cb.Execute(func() (*feed.TimelineResult, error) {
		return c.inner.Get(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return result, nil
}

// Set stores the timeline through the breaker. Writes while the breaker
// is open are dropped silently; the cache is best effort.
func (c *BreakerCache) Set(ctx context.Context, userID string, result *feed.TimelineResult) error {
	_, err := c.cb.Execute(func() (*feed.TimelineResult, error) {
		return nil, c.inner.Set(ctx, userID, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil
	}
	return err
}

// Delete removes the cached timeline through the breaker.
func (c *BreakerCache) Delete(ctx context.Context, userID string) error {
	_, err := c.cb.Execute(func() (*feed.TimelineResult, error) {
		return nil, c.inner.Delete(ctx, userID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil
	}
	return err
}

var _ Cache = (*BreakerCache)(nil)
