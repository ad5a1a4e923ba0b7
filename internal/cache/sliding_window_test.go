// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/cache

package cache

import (
	"testing"
	"time"
)

func TestSlidingWindowCounterBasic(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sw := newSlidingWindowCounter(time.Minute, 6, func() time.Time { return current })

	sw.Increment(3)
	sw.Increment(2)

	if got := sw.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}

func TestSlidingWindowCounterExpiry(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sw := newSlidingWindowCounter(time.Minute, 6, func() time.Time { return current })

	sw.Increment(10)

	// Half the window elapses: counts survive.
	current = current.Add(30 * time.Second)
	sw.Increment(1)
	if got := sw.Count(); got != 11 {
		t.Errorf("Count() after half window = %d, want 11", got)
	}

	// The original bucket rotates out.
	current = current.Add(40 * time.Second)
	if got := sw.Count(); got != 1 {
		t.Errorf("Count() after rotation = %d, want 1", got)
	}

	// Entire window elapses: all counts drop.
	current = current.Add(2 * time.Minute)
	if got := sw.Count(); got != 0 {
		t.Errorf("Count() after full window = %d, want 0", got)
	}
}

func TestSlidingWindowStorePerKey(t *testing.T) {
	t.Parallel()

	s := NewSlidingWindowStore(time.Minute, 6, 0)
	s.IncrementBy("post-1", 5)
	s.Increment("post-2")

	if got := s.Count("post-1"); got != 5 {
		t.Errorf("Count(post-1) = %d, want 5", got)
	}
	if got := s.Count("post-2"); got != 1 {
		t.Errorf("Count(post-2) = %d, want 1", got)
	}
	if got := s.Count("unknown"); got != 0 {
		t.Errorf("Count(unknown) = %d, want 0", got)
	}
}

func TestSlidingWindowStoreBoundedKeys(t *testing.T) {
	t.Parallel()

	s := NewSlidingWindowStore(time.Minute, 6, 3)
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		s.Increment(key)
	}

	if got := s.Len(); got > 3 {
		t.Errorf("Len() = %d, want <= 3", got)
	}
}

func TestSlidingWindowStoreCleanupInactive(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewSlidingWindowStore(time.Minute, 6, 0)
	s.SetClock(func() time.Time { return current })

	s.Increment("stale")
	current = current.Add(5 * time.Minute)
	s.Increment("live")

	if removed := s.CleanupInactive(); removed != 1 {
		t.Errorf("CleanupInactive() = %d, want 1", removed)
	}
	if got := s.Count("live"); got != 1 {
		t.Errorf("Count(live) = %d, want 1", got)
	}
}
