// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/cmd/server

package main

import (
	"context"
	"sort"
	"sync"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/feed/pipeline"
	"github.com/tidefeed/tidefeed/internal/scheduler"
)

// sourceMaxCandidates caps the personalized candidate slice handed to
// one build.
const sourceMaxCandidates = 500

// memorySource is an in-process candidate source: a bounded buffer of
// recent content that ingest integrations append to. Upstream systems
// owning persistence and candidate generation replace it by
// implementing scheduler.CandidateSource.
type memorySource struct {
	mu    sync.RWMutex
	items []feed.ContentItem
	max   int
}

var _ scheduler.CandidateSource = (*memorySource)(nil)

func newMemorySource() *memorySource {
	return &memorySource{max: sourceMaxCandidates * 4}
}

// Add appends content to the pool, dropping the oldest entries beyond
// the bound.
func (s *memorySource) Add(items ...feed.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, items...)
	if len(s.items) > s.max {
		s.items = s.items[len(s.items)-s.max:]
	}
}

// Candidates returns the newest pool content as the build input for a
// user. The full pool doubles as the injection candidate set.
func (s *memorySource) Candidates(_ context.Context, userID string) (pipeline.Request, error) {
	s.mu.RLock()
	pool := make([]feed.ContentItem, len(s.items))
	copy(pool, s.items)
	s.mu.RUnlock()

	sort.Slice(pool, func(i, j int) bool {
		return pool[i].CreatedAt.After(pool[j].CreatedAt)
	})

	candidates := pool
	if len(candidates) > sourceMaxCandidates {
		candidates = candidates[:sourceMaxCandidates]
	}

	return pipeline.Request{
		User:       feed.UserContext{UserID: userID},
		Candidates: candidates,
		Pool:       pool,
	}, nil
}
