// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/cache

package cache

import (
	"sync"
	"time"
)

// SlidingWindowCounter is a memory-efficient event counter over a rolling
// time window. Time is divided into buckets arranged as a circular buffer;
// the count within the window is the sum of live buckets.
//
// Complexity:
//   - Increment: O(1)
//   - Count: O(k) where k = number of buckets
//   - Memory: O(k) per counter
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	windowSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

// NewSlidingWindowCounter creates a counter dividing windowSize into
// numBuckets buckets.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int) *SlidingWindowCounter {
	return newSlidingWindowCounter(windowSize, numBuckets, time.Now)
}

func newSlidingWindowCounter(windowSize time.Duration, numBuckets int, now func() time.Time) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}

	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		windowSize: windowSize,
		numBuckets: numBuckets,
		lastUpdate: now(),
		now:        now,
	}
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	sw.buckets[sw.current] += delta
}

// Count returns the sum of all buckets in the window.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()

	var total int64
	for _, count := range sw.buckets {
		total += count
	}
	return total
}

// advance rotates the window forward based on elapsed time.
// Must be called with the lock held.
func (sw *SlidingWindowCounter) advance() {
	now := sw.now()
	elapsed := now.Sub(sw.lastUpdate)

	bucketsElapsed := int(elapsed / sw.bucketSize)
	if bucketsElapsed <= 0 {
		return
	}

	if bucketsElapsed >= sw.numBuckets {
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
	} else {
		for i := 0; i < bucketsElapsed; i++ {
			sw.current = (sw.current + 1) % sw.numBuckets
			sw.buckets[sw.current] = 0
		}
	}

	sw.lastUpdate = now
}

// SlidingWindowStore manages per-key sliding window counters, used for
// tracking engagement velocity per content id.
type SlidingWindowStore struct {
	mu         sync.Mutex
	counters   map[string]*SlidingWindowCounter
	windowSize time.Duration
	numBuckets int
	maxKeys    int
	now        func() time.Time
}

// NewSlidingWindowStore creates a store for sliding window counters.
// maxKeys bounds the number of tracked keys (0 = unlimited).
func NewSlidingWindowStore(windowSize time.Duration, numBuckets, maxKeys int) *SlidingWindowStore {
	return &SlidingWindowStore{
		counters:   make(map[string]*SlidingWindowCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
		now:        time.Now,
	}
}

// SetClock replaces the store's time source for counters created after
// the call. Intended for tests.
func (s *SlidingWindowStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// IncrementBy adds delta to the counter for the given key, creating it
// if needed.
func (s *SlidingWindowStore) IncrementBy(key string, delta int64) {
	s.mu.Lock()
	counter, exists := s.counters[key]
	if !exists {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictOne()
		}
		counter = newSlidingWindowCounter(s.windowSize, s.numBuckets, s.now)
		s.counters[key] = counter
	}
	s.mu.Unlock()

	counter.Increment(delta)
}

// Increment adds 1 to the counter for the given key.
func (s *SlidingWindowStore) Increment(key string) {
	s.IncrementBy(key, 1)
}

// Count returns the windowed count for the given key.
func (s *SlidingWindowStore) Count(key string) int64 {
	s.mu.Lock()
	counter, exists := s.counters[key]
	s.mu.Unlock()

	if !exists {
		return 0
	}
	return counter.Count()
}

// Len returns the number of tracked keys.
func (s *SlidingWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// CleanupInactive removes counters with no counts left in the window,
// returning the number removed.
func (s *SlidingWindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, counter := range s.counters {
		if counter.Count() == 0 {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// evictOne removes an arbitrary counter when at capacity.
// Must be called with the lock held.
func (s *SlidingWindowStore) evictOne() {
	for key := range s.counters {
		delete(s.counters, key)
		return
	}
}
