// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/timelinecache

package timelinecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tidefeed/tidefeed/internal/feed"
)

func sampleResult(userID string) *feed.TimelineResult {
	return &feed.TimelineResult{
		UserID: userID,
		Items: []feed.RankedItem{
			{Item: feed.ContentItem{ID: "post-1", AuthorID: "a1", RelevanceScore: 0.9}, Score: 0.9},
		},
		DiversityScore: 0.7,
		AvgRelevance:   0.9,
		GeneratedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty cache: %v, want ErrNotFound", err)
	}

	want := sampleResult("u1")
	if err := c.Set(ctx, "u1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || len(got.Items) != 1 {
		t.Errorf("got %+v, want stored result", got)
	}

	if err := c.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
}

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("badger.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("db.Close: %v", err)
		}
	})
	return db
}

func TestBadgerCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewBadgerCache(openTestBadger(t), time.Minute)
	ctx := context.Background()

	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty cache: %v, want ErrNotFound", err)
	}

	want := sampleResult("u1")
	if err := c.Set(ctx, "u1", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != want.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, want.UserID)
	}
	if len(got.Items) != 1 || got.Items[0].Item.ID != "post-1" {
		t.Errorf("Items = %+v, want the stored item", got.Items)
	}
	if got.DiversityScore != want.DiversityScore {
		t.Errorf("DiversityScore = %f, want %f", got.DiversityScore, want.DiversityScore)
	}

	if err := c.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v, want ErrNotFound", err)
	}
}

func TestBadgerCacheDeleteMissing(t *testing.T) {
	t.Parallel()

	c := NewBadgerCache(openTestBadger(t), time.Minute)
	if err := c.Delete(context.Background(), "ghost"); err != nil {
		t.Errorf("Delete of missing key: %v, want nil", err)
	}
}

// failingCache fails every call after a configurable number of successes.
type failingCache struct {
	failAfter int
	calls     int
}

var errBackendDown = errors.New("backend down")

func (f *failingCache) Get(context.Context, string) (*feed.TimelineResult, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, errBackendDown
	}
	return nil, ErrNotFound
}

func (f *failingCache) Set(context.Context, string, *feed.TimelineResult) error {
	f.calls++
	if f.calls > f.failAfter {
		return errBackendDown
	}
	return nil
}

func (f *failingCache) Delete(context.Context, string) error { return nil }

func TestBreakerCachePassesThrough(t *testing.T) {
	t.Parallel()

	inner := NewMemoryCache(10, time.Minute)
	c := NewBreakerCache(inner)
	ctx := context.Background()

	if err := c.Set(ctx, "u1", sampleResult("u1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
}

func TestBreakerCacheMissesDoNotTrip(t *testing.T) {
	t.Parallel()

	c := NewBreakerCache(NewMemoryCache(10, time.Minute))
	ctx := context.Background()

	// Well past the trip threshold, all misses: breaker must stay closed.
	for i := 0; i < 30; i++ {
		if _, err := c.Get(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get %d: %v, want ErrNotFound", i, err)
		}
	}
}

func TestBreakerCacheOpensOnFailures(t *testing.T) {
	t.Parallel()

	c := NewBreakerCache(&failingCache{failAfter: 0})
	ctx := context.Background()

	// Drive enough failures to open the breaker.
	sawBackendErr := false
	for i := 0; i < 20; i++ {
		_, err := c.Get(ctx, "u1")
		if errors.Is(err, errBackendDown) {
			sawBackendErr = true
		}
	}
	if !sawBackendErr {
		t.Fatal("expected backend errors before the breaker opened")
	}

	// Once open, reads degrade to ErrNotFound instead of backend errors.
	if _, err := c.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get with open breaker: %v, want ErrNotFound", err)
	}

	// Writes while open are dropped without error.
	if err := c.Set(ctx, "u1", sampleResult("u1")); err != nil {
		t.Errorf("Set with open breaker: %v, want nil", err)
	}
}
