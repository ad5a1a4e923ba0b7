// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/quality

package quality

import (
	"math"
	"time"

	"github.com/tidefeed/tidefeed/internal/cache"
)

// FeedbackType names an explicit user reaction to content.
type FeedbackType string

// Recognized feedback types.
const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
	FeedbackReport  FeedbackType = "report"
	FeedbackHide    FeedbackType = "hide"
	FeedbackShare   FeedbackType = "share"
	FeedbackSave    FeedbackType = "save"
)

// Feedback is one explicit user reaction.
type Feedback struct {
	ContentID string       `json:"content_id"`
	UserID    string       `json:"user_id"`
	Type      FeedbackType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// feedbackHalfLife is the age at which an event's influence halves.
const feedbackHalfLife = 7 * 24 * time.Hour

// maxEventsPerContent caps the retained events per content id, keeping
// the newest.
const maxEventsPerContent = 500

// valence maps feedback types to a signed contribution and a weight.
// Reports carry double weight.
func valence(t FeedbackType) (value, weight float64) {
	switch t {
	case FeedbackLike:
		return 1, 1
	case FeedbackShare:
		return 1, 1
	case FeedbackSave:
		return 0.8, 1
	case FeedbackDislike:
		return -1, 1
	case FeedbackHide:
		return -0.8, 1
	case FeedbackReport:
		return -1, 2
	default:
		return 0, 0
	}
}

// feedbackStore accumulates time-decayed user feedback per content id.
type feedbackStore struct {
	events *cache.LRU[[]Feedback]
	now    func() time.Time
}

func newFeedbackStore(capacity int, ttl time.Duration) *feedbackStore {
	return &feedbackStore{
		events: cache.NewLRU[[]Feedback](capacity, ttl),
		now:    time.Now,
	}
}

// add records a feedback event for its content id.
func (s *feedbackStore) add(fb Feedback) {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = s.now()
	}

	existing, _ := s.events.Get(fb.ContentID)
	existing = append(existing, fb)
	if len(existing) > maxEventsPerContent {
		existing = existing[len(existing)-maxEventsPerContent:]
	}
	s.events.Add(fb.ContentID, existing)
}

// score returns the decayed feedback score for a content id in [0, 1],
// 0.5 when no feedback exists.
func (s *feedbackStore) score(contentID string) float64 {
	events, ok := s.events.Get(contentID)
	if !ok || len(events) == 0 {
		return 0.5
	}

	now := s.now()
	var net, total float64
	for _, fb := range events {
		value, weight := valence(fb.Type)
		if weight == 0 {
			continue
		}

		age := now.Sub(fb.CreatedAt)
		if age < 0 {
			age = 0
		}
		decay := math.Exp2(-age.Hours() / feedbackHalfLife.Hours())

		net += value * weight * decay
		total += weight * decay
	}

	if total == 0 {
		return 0.5
	}
	return (net/total + 1) / 2
}

// hasReports reports whether any report events exist for a content id.
func (s *feedbackStore) hasReports(contentID string) bool {
	events, ok := s.events.Get(contentID)
	if !ok {
		return false
	}
	for _, fb := range events {
		if fb.Type == FeedbackReport {
			return true
		}
	}
	return false
}

// count returns the number of retained events for a content id.
func (s *feedbackStore) count(contentID string) int {
	events, _ := s.events.Get(contentID)
	return len(events)
}
