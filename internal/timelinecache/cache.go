// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/timelinecache

// Package timelinecache stores precomputed timeline results keyed by
// user id. The scheduler writes results here and getUserTimeline reads
// them back before falling to a fresh build.
package timelinecache

import (
	"context"
	"errors"

	"github.com/tidefeed/tidefeed/internal/feed"
)

// ErrNotFound indicates no cached timeline exists for the user.
var ErrNotFound = errors.New("timelinecache: not found")

// Cache stores one timeline result per user.
type Cache interface {
	// Get returns the cached timeline for a user, or ErrNotFound.
	Get(ctx context.Context, userID string) (*feed.TimelineResult, error)

	// Set stores the timeline for a user, replacing any previous one.
	Set(ctx context.Context, userID string, result *feed.TimelineResult) error

	// Delete removes the cached timeline for a user.
	Delete(ctx context.Context, userID string) error
}
