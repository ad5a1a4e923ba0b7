// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

package embedding

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	cfg := DefaultManagerConfig()
	cfg.Store.Capacity = 1000
	cfg.Store.Dimension = 16

	m, err := NewManager(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestManagerRoutesPerEntityType(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	vec := make([]float64, 16)
	vec[0] = 1

	if _, err := m.Set(EntityUser, "alice", vec); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Get(EntityUser, "alice"); !ok {
		t.Error("expected user embedding")
	}
	// Same id in a different namespace must not be visible.
	if _, ok := m.Get(EntityContent, "alice"); ok {
		t.Error("cross-type key leakage")
	}
}

func TestManagerUnknownEntityType(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	if _, err := m.Set(EntityType("bogus"), "x", make([]float64, 16)); err == nil {
		t.Error("expected error for unknown entity type")
	}
	if _, ok := m.Get(EntityType("bogus"), "x"); ok {
		t.Error("expected miss for unknown entity type")
	}
}

func TestGetOrCreateSynthesizesUnitVector(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	vec, err := m.GetOrCreate(EntityTopic, "golang")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if len(vec) != 16 {
		t.Fatalf("expected dimension 16, got %d", len(vec))
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}

	// Second call returns the stored vector, not a fresh draw.
	again, err := m.GetOrCreate(EntityTopic, "golang")
	if err != nil {
		t.Fatal(err)
	}
	for i := range vec {
		if vec[i] != again[i] {
			t.Fatal("GetOrCreate did not return the stored vector")
		}
	}
}

func TestManagerSweepAndHealth(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)

	for _, et := range AllEntityTypes {
		if _, err := m.GetOrCreate(et, "seed"); err != nil {
			t.Fatal(err)
		}
	}

	if removed := m.Sweep(); removed != 0 {
		t.Errorf("expected no removals on young entries, got %d", removed)
	}
	if !m.Healthy() {
		t.Error("expected healthy manager")
	}
	if m.MemoryUsage() <= 0 {
		t.Error("expected nonzero memory estimate")
	}

	stats := m.StatsByType()
	if len(stats) != len(AllEntityTypes) {
		t.Errorf("expected %d store stats, got %d", len(AllEntityTypes), len(stats))
	}
}
