// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/scheduler

package scheduler

import (
	"sync"
	"time"
)

// minObservations is the histogram mass required before predictions are
// given any confidence.
const minObservations = 5

// maxTrackedUsers bounds the predictor's per-user state.
const maxTrackedUsers = 100000

// ActivityPredictor learns each user's hour-of-day activity histogram
// and predicts the next time they will be active.
type ActivityPredictor struct {
	mu         sync.Mutex
	histograms map[string]*[24]int
	now        func() time.Time
}

// NewActivityPredictor creates an empty predictor.
func NewActivityPredictor() *ActivityPredictor {
	return &ActivityPredictor{
		histograms: make(map[string]*[24]int),
		now:        time.Now,
	}
}

// RecordActivity registers that a user was active at the given time.
func (p *ActivityPredictor) RecordActivity(userID string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hist, ok := p.histograms[userID]
	if !ok {
		if len(p.histograms) >= maxTrackedUsers {
			p.evictOne()
		}
		hist = &[24]int{}
		p.histograms[userID] = hist
	}
	hist[at.Hour()]++
}

// Prediction is a confidence-scored estimate of a user's next activity.
type Prediction struct {
	UserID     string
	NextActive time.Time
	Confidence float64
}

// PredictNextActive estimates when a user will next be active. The
// prediction is the next occurrence of the user's strongest activity
// hour; confidence is that hour's share of all observations. Users with
// too little history predict with zero confidence.
func (p *ActivityPredictor) PredictNextActive(userID string) (Prediction, bool) {
	p.mu.Lock()
	hist, ok := p.histograms[userID]
	if !ok {
		p.mu.Unlock()
		return Prediction{}, false
	}

	total := 0
	bestHour, bestCount := 0, 0
	for hour, count := range hist {
		total += count
		if count > bestCount {
			bestHour, bestCount = hour, count
		}
	}
	now := p.now()
	p.mu.Unlock()

	if total < minObservations || bestCount == 0 {
		return Prediction{UserID: userID}, false
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), bestHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}

	return Prediction{
		UserID:     userID,
		NextActive: next,
		Confidence: float64(bestCount) / float64(total),
	}, true
}

// TrackedUsers returns the user ids with recorded activity.
func (p *ActivityPredictor) TrackedUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := make([]string, 0, len(p.histograms))
	for userID := range p.histograms {
		users = append(users, userID)
	}
	return users
}

// evictOne removes an arbitrary user's histogram when at capacity.
// Must be called with the lock held.
func (p *ActivityPredictor) evictOne() {
	for userID := range p.histograms {
		delete(p.histograms, userID)
		return
	}
}
