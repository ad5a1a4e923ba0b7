// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/injection

package injection

import (
	"math"
	"time"

	"github.com/tidefeed/tidefeed/internal/cache"
	"github.com/tidefeed/tidefeed/internal/feed"
)

// Engagement weights for velocity tracking. Shares signal the strongest
// endorsement, comments cost more effort than likes.
const (
	likeWeight    = 1
	commentWeight = 2
	shareWeight   = 3
)

// trendingPeakHours is the content age at which the trending recency
// factor peaks. Engagement before this point is still accumulating,
// after it the item is aging out.
const trendingPeakHours = 6.0

// VelocityTracker measures live engagement velocity per content id over
// a sliding window.
type VelocityTracker struct {
	window *cache.SlidingWindowStore
}

// NewVelocityTracker creates a tracker with a 6-hour window split into
// 15-minute buckets, bounded to maxKeys tracked ids.
func NewVelocityTracker(maxKeys int) *VelocityTracker {
	return &VelocityTracker{
		window: cache.NewSlidingWindowStore(6*time.Hour, 24, maxKeys),
	}
}

// RecordLike registers a like event for a content id.
func (t *VelocityTracker) RecordLike(contentID string) {
	t.window.IncrementBy(contentID, likeWeight)
}

// RecordComment registers a comment event for a content id.
func (t *VelocityTracker) RecordComment(contentID string) {
	t.window.IncrementBy(contentID, commentWeight)
}

// RecordShare registers a share event for a content id.
func (t *VelocityTracker) RecordShare(contentID string) {
	t.window.IncrementBy(contentID, shareWeight)
}

// Velocity returns the windowed engagement count for a content id.
func (t *VelocityTracker) Velocity(contentID string) int64 {
	return t.window.Count(contentID)
}

// CleanupInactive drops ids with no engagement left in the window.
func (t *VelocityTracker) CleanupInactive() int {
	return t.window.CleanupInactive()
}

// trendingScore combines engagement velocity with a recency factor that
// peaks at trendingPeakHours of content age. Items without live window
// data fall back to the item's cumulative engagement counts.
func (t *VelocityTracker) trendingScore(item *feed.ContentItem, now time.Time) float64 {
	velocity := float64(0)
	if t != nil {
		velocity = float64(t.Velocity(item.ID))
	}
	if velocity == 0 {
		velocity = float64(item.Likes*likeWeight + item.Comments*commentWeight + item.Shares*shareWeight)
	}

	ageHours := now.Sub(item.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recency := math.Exp(-math.Pow(ageHours-trendingPeakHours, 2) / 72)

	return math.Log1p(velocity) * recency
}
