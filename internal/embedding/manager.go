// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

package embedding

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EntityType names an embedding namespace. Each type owns an independent
// store; keys are never shared across types.
type EntityType string

// Supported entity types.
const (
	EntityUser    EntityType = "user"
	EntityContent EntityType = "content"
	EntityTopic   EntityType = "topic"
	EntityAuthor  EntityType = "author"
)

// AllEntityTypes lists the namespaces a manager owns.
var AllEntityTypes = []EntityType{EntityUser, EntityContent, EntityTopic, EntityAuthor}

// ManagerConfig configures the multi-type manager.
type ManagerConfig struct {
	// Store is the per-type store configuration.
	Store StoreConfig

	// SystemMemoryCeilingBytes is the aggregate memory budget across all
	// stores. Crossing 80% of it escalates periodic cleanup to aggressive.
	// Default: 512MB.
	SystemMemoryCeilingBytes int64

	// Seed drives the random vector synthesis in GetOrCreate.
	// Zero selects a fixed default for determinism.
	Seed int64
}

// DefaultManagerConfig returns production defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Store:                    DefaultStoreConfig(),
		SystemMemoryCeilingBytes: 512 << 20,
	}
}

// Manager routes embedding operations to one bounded store per entity type
// and owns their shared cleanup and health reporting. It is constructed
// explicitly by the composition root and passed by reference; there is no
// package-level instance.
type Manager struct {
	cfg    ManagerConfig
	stores map[EntityType]*Store
	logger zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManager creates a manager with one store per entity type.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewManager(cfg ManagerConfig, logger zerolog.Logger) (*Manager, error) {
	if cfg.SystemMemoryCeilingBytes <= 0 {
		cfg.SystemMemoryCeilingBytes = 512 << 20
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 42
	}

	stores := make(map[EntityType]*Store, len(AllEntityTypes))
	for _, et := range AllEntityTypes {
		store, err := NewStore(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", et, err)
		}
		stores[et] = store
	}

	return &Manager{
		cfg:    cfg,
		stores: stores,
		logger: logger.With().Str("component", "embedding").Logger(),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // math/rand is fine for synthetic vectors
	}, nil
}

// store returns the store for an entity type, or nil for unknown types.
func (m *Manager) store(et EntityType) *Store {
	return m.stores[et]
}

// Get returns the embedding for an entity, if present.
func (m *Manager) Get(et EntityType, id string) ([]float64, bool) {
	s := m.store(et)
	if s == nil {
		return nil, false
	}
	return s.Get(id)
}

// Set stores an embedding for an entity. It reports whether the vector was
// stored; the only error is a dimension mismatch.
func (m *Manager) Set(et EntityType, id string, vector []float64) (bool, error) {
	s := m.store(et)
	if s == nil {
		return false, fmt.Errorf("embedding: unknown entity type %q", et)
	}
	return s.Set(id, vector)
}

// GetOrCreate returns the existing embedding for an entity or synthesizes a
// unit-norm random vector. A failure to persist the new vector is non-fatal:
// the caller still receives a usable vector for this request.
func (m *Manager) GetOrCreate(et EntityType, id string) ([]float64, error) {
	s := m.store(et)
	if s == nil {
		return nil, fmt.Errorf("embedding: unknown entity type %q", et)
	}

	if vec, ok := s.Get(id); ok {
		return vec, nil
	}

	vec := m.randomUnitVector(s.cfg.Dimension)
	stored, err := s.Set(id, vec)
	if err != nil {
		return nil, err
	}
	if !stored {
		m.logger.Debug().
			Str("entity_type", string(et)).
			Str("id", id).
			Msg("synthesized vector not stored, store full")
	}
	return vec, nil
}

// randomUnitVector draws a vector of unit L2 norm.
func (m *Manager) randomUnitVector(dim int) []float64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()

	vec := make([]float64, dim)
	var norm float64
	for i := range vec {
		vec[i] = m.rng.NormFloat64()
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Sweep runs expiry cleanup on every store, escalating to aggressive
// cleanup when aggregate memory exceeds 80% of the system ceiling. It is
// invoked on a fixed cadence by the supervisor-owned cleanup service so
// tests can drive it directly. Returns the number of entries removed.
func (m *Manager) Sweep() int {
	removed := 0
	aggressive := m.MemoryUsage() > m.cfg.SystemMemoryCeilingBytes*8/10

	for et, s := range m.stores {
		var n int
		if aggressive {
			n = s.AggressiveCleanup()
		} else {
			n = s.CleanupExpired()
		}
		if n > 0 {
			m.logger.Debug().
				Str("entity_type", string(et)).
				Int("removed", n).
				Bool("aggressive", aggressive).
				Msg("embedding cleanup")
		}
		removed += n
	}
	return removed
}

// MemoryUsage returns the estimated aggregate memory of all stores.
func (m *Manager) MemoryUsage() int64 {
	var total int64
	for _, s := range m.stores {
		total += s.GetStats().EstimatedMemoryBytes
	}
	return total
}

// Healthy reports system-wide health: every store healthy and aggregate
// memory within the ceiling.
func (m *Manager) Healthy() bool {
	for _, s := range m.stores {
		if !s.GetHealth().Healthy {
			return false
		}
	}
	return m.MemoryUsage() < m.cfg.SystemMemoryCeilingBytes
}

// StatsByType returns a per-type snapshot of store counters.
func (m *Manager) StatsByType() map[EntityType]Stats {
	out := make(map[EntityType]Stats, len(m.stores))
	for et, s := range m.stores {
		out[et] = s.GetStats()
	}
	return out
}

// CleanupInterval is the suggested cadence for Sweep.
const CleanupInterval = 5 * time.Minute
