// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/cache

package cache

import (
	"testing"
	"time"
)

func TestLRUBasicOperations(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)

	if got, ok := c.Get("a"); !ok || got != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := NewLRU[string](2, time.Minute)

	c.Add("a", "1")
	c.Add("b", "2")
	c.Get("a") // a is now most recently used
	c.Add("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestLRUExpiry(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](10, time.Hour)

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return current })

	c.Add("a", 1)

	current = current.Add(2 * time.Hour)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
}

func TestLRUCleanupExpired(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](10, time.Hour)

	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return current })

	c.Add("old", 1)
	current = current.Add(30 * time.Minute)
	c.Add("fresh", 2)
	current = current.Add(45 * time.Minute) // old expired, fresh not

	if removed := c.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive cleanup")
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](2, time.Minute)
	c.Add("a", 1)
	c.Add("a", 2)

	if got, _ := c.Get("a"); got != 2 {
		t.Errorf("Get(a) = %d, want 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRUStats(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](2, time.Minute)
	c.Add("a", 1)
	c.Get("a")
	c.Get("b")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d; want 1, 1, 1", hits, misses, size)
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	t.Parallel()

	c := NewLRU[int](5, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)

	if !c.Remove("a") {
		t.Error("Remove(a) should report present")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) should report absent")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}
