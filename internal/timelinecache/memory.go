// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/timelinecache

package timelinecache

import (
	"context"
	"time"

	"github.com/tidefeed/tidefeed/internal/cache"
	"github.com/tidefeed/tidefeed/internal/feed"
)

// MemoryCache is an in-process LRU-backed cache, suitable for tests and
// single-instance deployments without persistence.
type MemoryCache struct {
	lru *cache.LRU[*feed.TimelineResult]
}

// NewMemoryCache creates a memory cache holding up to capacity timelines
// for ttl each.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: cache.NewLRU[*feed.TimelineResult](capacity, ttl)}
}

// Get returns the cached timeline for a user, or ErrNotFound.
func (c *MemoryCache) Get(_ context.Context, userID string) (*feed.TimelineResult, error) {
	result, ok := c.lru.Get(userID)
	if !ok {
		return nil, ErrNotFound
	}
	return result, nil
}

// Set stores the timeline for a user.
func (c *MemoryCache) Set(_ context.Context, userID string, result *feed.TimelineResult) error {
	c.lru.Add(userID, result)
	return nil
}

// Delete removes the cached timeline for a user.
func (c *MemoryCache) Delete(_ context.Context, userID string) error {
	c.lru.Remove(userID)
	return nil
}

// Stats returns hit/miss counters and the current size.
func (c *MemoryCache) Stats() (hits, misses int64, size int) {
	return c.lru.Stats()
}

var _ Cache = (*MemoryCache)(nil)
