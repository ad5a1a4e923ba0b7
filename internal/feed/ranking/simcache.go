// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/ranking

package ranking

import (
	"strings"
	"sync"
)

// similarityCache memoizes pairwise similarity scores. Keys are order
// independent, so (a, b) and (b, a) share an entry. When the cache fills,
// the oldest tenth of entries is evicted in insertion order.
type similarityCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]float64
	order    []string
	hits     uint64
	misses   uint64
}

func newSimilarityCache(capacity int) *similarityCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &similarityCache{
		capacity: capacity,
		entries:  make(map[string]float64, capacity),
		order:    make([]string, 0, capacity),
	}
}

// pairKey builds an order-independent cache key for an item pair and method.
func pairKey(method Method, idA, idB string) string {
	if idA > idB {
		idA, idB = idB, idA
	}
	var b strings.Builder
	b.Grow(len(method) + len(idA) + len(idB) + 2)
	b.WriteString(string(method))
	b.WriteByte('|')
	b.WriteString(idA)
	b.WriteByte('|')
	b.WriteString(idB)
	return b.String()
}

func (c *similarityCache) get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	score, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return score, ok
}

func (c *similarityCache) put(key string, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = score
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = score
	c.order = append(c.order, key)
}

// evictOldestLocked removes the oldest ~10% of entries, at least one.
func (c *similarityCache) evictOldestLocked() {
	n := c.capacity / 10
	if n < 1 {
		n = 1
	}
	if n > len(c.order) {
		n = len(c.order)
	}
	for _, key := range c.order[:n] {
		delete(c.entries, key)
	}
	c.order = c.order[n:]
}

// hitRate reports the fraction of lookups served from the cache.
func (c *similarityCache) hitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *similarityCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
