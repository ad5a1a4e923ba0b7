// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

// Package embedding provides a bounded, collision-free key-to-vector store
// and a multi-type manager for per-entity embeddings.
package embedding

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

// Sentinel errors returned by store operations.
var (
	// ErrDimensionMismatch indicates a vector whose length does not match
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding: vector dimension mismatch")

	// ErrInvalidConfig indicates an unusable store configuration.
	ErrInvalidConfig = errors.New("embedding: invalid store config")
)

// FNV-64a parameters. The secondary seed is offset by a golden-ratio
// constant so the two probe sequences are independent.
const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
	seedSplit   uint64 = 0x9E3779B97F4A7C15
)

// Entry is a stored embedding with its access bookkeeping.
// Entries are owned exclusively by the slot that holds them and are mutated
// in place on every hit.
type Entry struct {
	// Key is the original logical key. It is kept on the entry so a
	// displaced entry can be re-placed under its real identity instead of
	// a synthetic one derived from its hash.
	Key string

	// Vector is the embedding. Callers always receive a copy.
	Vector []float64

	// Frequency counts reads and writes of this entry.
	Frequency uint64

	// LastAccessed is the time of the most recent read or write.
	LastAccessed time.Time

	// CreatedAt is when the entry was first stored.
	CreatedAt time.Time
}

// retentionScore weighs frequency against recency and age. Higher scores
// survive collisions.
func retentionScore(e *Entry, now time.Time) float64 {
	daysSinceAccess := now.Sub(e.LastAccessed).Hours() / 24
	daysSinceCreation := now.Sub(e.CreatedAt).Hours() / 24

	return math.Log(1+float64(e.Frequency)) *
		math.Exp(-daysSinceAccess/7) *
		math.Exp(-daysSinceCreation/30)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Capacity is the maximum number of live entries.
	// Default: 100000.
	Capacity int

	// Dimension is the fixed vector length.
	// Default: 64.
	Dimension int

	// MinFrequencyThreshold marks entries as low-value during aggressive
	// cleanup: entries below it are dropped ahead of the score-sorted tail.
	// Default: 3.
	MinFrequencyThreshold uint64

	// Expiry is the base lifetime of an untouched entry. Frequently read
	// entries live up to 3x longer.
	// Default: 168h (one week).
	Expiry time.Duration

	// MaxEvictionAttempts bounds the displacement chain during cuckoo
	// insertion. Default: 8.
	MaxEvictionAttempts int

	// MemoryCeilingBytes caps the estimated memory of the store for the
	// health check. Zero means no ceiling.
	MemoryCeilingBytes int64
}

// DefaultStoreConfig returns production defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Capacity:              100000,
		Dimension:             64,
		MinFrequencyThreshold: 3,
		Expiry:                168 * time.Hour,
		MaxEvictionAttempts:   8,
	}
}

// Stats is a snapshot of store counters.
type Stats struct {
	Entries               int
	Hits                  int64
	Misses                int64
	Collisions            int64
	Evictions             int64
	DroppedEntries        int64
	SuccessfulInsertions  int64
	RejectedInsertions    int64
	AvgLookupNanos        int64
	AvgInsertNanos        int64
	EstimatedMemoryBytes  int64
	CapacitySweepTriggers int64
}

// Store is a two-table cuckoo hash map from string keys to embedding
// vectors. Every logical key occupies at most one slot across both tables,
// so lookups are O(1) worst case and two live keys can never be conflated:
// a slot conflict is resolved by evicting the occupant with the lower
// retention score, never by silent overwrite.
//
// The store is bounded: insertions past capacity trigger an expiry sweep
// and are rejected when the sweep frees nothing.
type Store struct {
	mu  sync.Mutex
	cfg StoreConfig

	// primary and secondary are fixed-role slot tables. tableMask is
	// tableSize-1; tableSize is a power of two of at least twice the
	// capacity, keeping the worst-case load factor low enough that a
	// displacement chain of MaxEvictionAttempts essentially always
	// terminates.
	primary   []*Entry
	secondary []*Entry
	tableMask uint64

	entries int

	hits                  int64
	misses                int64
	collisions            int64
	evictions             int64
	dropped               int64
	successfulInsertions  int64
	rejectedInsertions    int64
	lookupNanos           int64
	lookups               int64
	insertNanos           int64
	inserts               int64
	capacitySweepTriggers int64

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewStore creates a bounded embedding store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100000
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 64
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 168 * time.Hour
	}
	if cfg.MaxEvictionAttempts <= 0 {
		cfg.MaxEvictionAttempts = 8
	}
	if cfg.Dimension > 4096 {
		return nil, ErrInvalidConfig
	}

	size := nextPowerOfTwo(2 * cfg.Capacity)

	return &Store{
		cfg:       cfg,
		primary:   make([]*Entry, size),
		secondary: make([]*Entry, size),
		tableMask: uint64(size - 1),
		now:       time.Now,
	}, nil
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// hashKey computes FNV-64a over key starting from seed.
func hashKey(key string, seed uint64) uint64 {
	h := seed
	for i := 0; i < len(key); i++ {
		h ^= uint64(key[i])
		h *= fnvPrime64
	}
	return h
}

// slots returns the primary and secondary slot indexes for a key.
func (s *Store) slots(key string) (uint64, uint64) {
	return hashKey(key, fnvOffset64) & s.tableMask,
		hashKey(key, fnvOffset64^seedSplit) & s.tableMask
}

// Get returns a copy of the vector stored for key.
// A hit bumps the entry's frequency and access time.
func (s *Store) Get(key string) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	entry := s.locate(key)
	s.lookups++
	s.lookupNanos += s.now().Sub(start).Nanoseconds()

	if entry == nil {
		s.misses++
		return nil, false
	}

	entry.Frequency++
	entry.LastAccessed = s.now()
	s.hits++

	out := make([]float64, len(entry.Vector))
	copy(out, entry.Vector)
	return out, true
}

// locate finds the live entry for key, or nil. Caller must hold mu.
func (s *Store) locate(key string) *Entry {
	p, q := s.slots(key)
	if e := s.primary[p]; e != nil && e.Key == key {
		return e
	}
	if e := s.secondary[q]; e != nil && e.Key == key {
		return e
	}
	return nil
}

// Set stores a copy of vector under key. It returns false when the store
// is full after an expiry sweep, or when the colliding occupants both carry
// strictly higher retention scores than a fresh entry would. The only error
// condition is a vector of the wrong dimension.
func (s *Store) Set(key string, vector []float64) (bool, error) {
	if len(vector) != s.cfg.Dimension {
		return false, ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	defer func() {
		s.inserts++
		s.insertNanos += s.now().Sub(start).Nanoseconds()
	}()

	now := s.now()

	// Updating an existing key mutates in place.
	if existing := s.locate(key); existing != nil {
		existing.Vector = append(existing.Vector[:0], vector...)
		existing.Frequency++
		existing.LastAccessed = now
		s.successfulInsertions++
		return true, nil
	}

	if s.entries >= s.cfg.Capacity {
		s.capacitySweepTriggers++
		s.cleanupExpiredLocked(now)
		if s.entries >= s.cfg.Capacity {
			s.rejectedInsertions++
			return false, nil
		}
	}

	vec := make([]float64, len(vector))
	copy(vec, vector)
	entry := &Entry{
		Key:          key,
		Vector:       vec,
		Frequency:    1,
		LastAccessed: now,
		CreatedAt:    now,
	}

	if s.place(entry, now) {
		s.successfulInsertions++
		return true, nil
	}

	s.rejectedInsertions++
	return false, nil
}

// place runs the cuckoo insertion for entry using a bounded work-list
// instead of recursion. The attempt budget applies to the whole chain; when
// it runs out the currently displaced entry is dropped and counted, which
// only fails the original insertion if the original entry itself could not
// be placed.
func (s *Store) place(entry *Entry, now time.Time) bool {
	original := entry
	placedOriginal := false
	attempts := 0

	for entry != nil {
		p, q := s.slots(entry.Key)

		if s.primary[p] == nil {
			s.primary[p] = entry
			s.entries++
			if entry == original {
				placedOriginal = true
			}
			entry = nil
			continue
		}
		if s.secondary[q] == nil {
			s.secondary[q] = entry
			s.entries++
			if entry == original {
				placedOriginal = true
			}
			entry = nil
			continue
		}

		// Both candidate slots occupied.
		s.collisions++

		occupantP := s.primary[p]
		occupantQ := s.secondary[q]
		scoreNew := retentionScore(entry, now)
		scoreP := retentionScore(occupantP, now)
		scoreQ := retentionScore(occupantQ, now)

		// An entry strictly weaker than both occupants never takes a
		// slot; this protects long-lived popular entries from churn at
		// every step of the displacement chain. The original insert is
		// rejected outright; a displaced resident that has decayed below
		// both occupants is tolerated data loss.
		if scoreNew < scoreP && scoreNew < scoreQ {
			if entry == original {
				return false
			}
			s.dropped++
			return placedOriginal
		}

		attempts++
		if attempts > s.cfg.MaxEvictionAttempts {
			if entry == original {
				return false
			}
			// A displaced entry that ran out of re-placement attempts is
			// tolerated data loss.
			s.dropped++
			return placedOriginal
		}

		// Evict the weaker occupant and take its slot.
		var displaced *Entry
		if scoreP <= scoreQ {
			displaced = occupantP
			s.primary[p] = entry
		} else {
			displaced = occupantQ
			s.secondary[q] = entry
		}
		s.evictions++
		if entry == original {
			placedOriginal = true
		}
		entry = displaced
	}

	return placedOriginal
}

// CleanupExpired removes entries whose idle time exceeds the base expiry
// scaled by their frequency (up to 3x). Returns the number removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupExpiredLocked(s.now())
}

// cleanupExpiredLocked sweeps both tables. Caller must hold mu.
func (s *Store) cleanupExpiredLocked(now time.Time) int {
	removed := 0
	for _, table := range [][]*Entry{s.primary, s.secondary} {
		for i, e := range table {
			if e == nil {
				continue
			}
			extension := math.Min(1+float64(e.Frequency)/100, 3)
			lifetime := time.Duration(float64(s.cfg.Expiry) * extension)
			if now.Sub(e.LastAccessed) > lifetime {
				table[i] = nil
				s.entries--
				removed++
			}
		}
	}
	return removed
}

// AggressiveCleanup removes expired entries and, when utilization is at or
// above 90%, additionally drops low-frequency entries and the bottom 10% of
// the remainder by retention score. Returns the total removed.
func (s *Store) AggressiveCleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := s.cleanupExpiredLocked(now)

	if float64(s.entries) < 0.9*float64(s.cfg.Capacity) {
		return removed
	}

	type slotRef struct {
		table []*Entry
		index int
		score float64
	}

	live := make([]slotRef, 0, s.entries)
	for _, table := range [][]*Entry{s.primary, s.secondary} {
		for i, e := range table {
			if e == nil {
				continue
			}
			if e.Frequency < s.cfg.MinFrequencyThreshold && now.Sub(e.CreatedAt) > s.cfg.Expiry/2 {
				table[i] = nil
				s.entries--
				removed++
				continue
			}
			live = append(live, slotRef{table: table, index: i, score: retentionScore(e, now)})
		}
	}

	// Partial selection would do, but the sweep is already O(n) and runs
	// rarely; a full sort keeps it simple.
	sort.Slice(live, func(i, j int) bool { return live[i].score < live[j].score })

	drop := len(live) / 10
	for i := 0; i < drop; i++ {
		live[i].table[live[i].index] = nil
		s.entries--
		removed++
	}

	return removed
}

// TotalEntries returns the number of live entries.
func (s *Store) TotalEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// GetStats returns a snapshot of the store counters.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Entries:               s.entries,
		Hits:                  s.hits,
		Misses:                s.misses,
		Collisions:            s.collisions,
		Evictions:             s.evictions,
		DroppedEntries:        s.dropped,
		SuccessfulInsertions:  s.successfulInsertions,
		RejectedInsertions:    s.rejectedInsertions,
		EstimatedMemoryBytes:  s.estimatedMemoryLocked(),
		CapacitySweepTriggers: s.capacitySweepTriggers,
	}
	if s.lookups > 0 {
		stats.AvgLookupNanos = s.lookupNanos / s.lookups
	}
	if s.inserts > 0 {
		stats.AvgInsertNanos = s.insertNanos / s.inserts
	}
	return stats
}

// estimatedMemoryLocked approximates the store's heap footprint: vectors
// plus per-entry overhead plus the slot tables themselves.
func (s *Store) estimatedMemoryLocked() int64 {
	const entryOverhead = 96 // struct, key header, slice header, map-free
	perEntry := int64(s.cfg.Dimension*8 + entryOverhead)
	tables := int64(len(s.primary)+len(s.secondary)) * 8
	return int64(s.entries)*perEntry + tables
}

// Health describes the store health predicate inputs.
type Health struct {
	Healthy            bool
	CollisionRate      float64
	AvgLookupMillis    float64
	AvgInsertMillis    float64
	MemoryBytes        int64
	MemoryCeilingBytes int64
	Utilization        float64
}

// GetHealth evaluates the health predicate: collision rate below 10% of
// insertions, sub-millisecond average lookup, sub-2ms average insert, and
// memory below the configured ceiling.
func (s *Store) GetHealth() Health {
	stats := s.GetStats()

	h := Health{
		MemoryBytes:        stats.EstimatedMemoryBytes,
		MemoryCeilingBytes: s.cfg.MemoryCeilingBytes,
		AvgLookupMillis:    float64(stats.AvgLookupNanos) / 1e6,
		AvgInsertMillis:    float64(stats.AvgInsertNanos) / 1e6,
		Utilization:        float64(stats.Entries) / float64(s.cfg.Capacity),
	}
	if stats.SuccessfulInsertions+stats.RejectedInsertions > 0 {
		h.CollisionRate = float64(stats.Collisions) /
			float64(stats.SuccessfulInsertions+stats.RejectedInsertions)
	}

	h.Healthy = h.CollisionRate < 0.1 &&
		h.AvgLookupMillis < 1.0 &&
		h.AvgInsertMillis < 2.0 &&
		(s.cfg.MemoryCeilingBytes == 0 || h.MemoryBytes < s.cfg.MemoryCeilingBytes)

	return h
}

// Delete removes the entry for key if present.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, q := s.slots(key)
	if e := s.primary[p]; e != nil && e.Key == key {
		s.primary[p] = nil
		s.entries--
		return true
	}
	if e := s.secondary[q]; e != nil && e.Key == key {
		s.secondary[q] = nil
		s.entries--
		return true
	}
	return false
}
