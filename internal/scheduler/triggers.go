// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/scheduler

package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tidefeed/tidefeed/internal/metrics"
)

// TriggerKind names the condition that requested a timeline refresh.
type TriggerKind string

// Refresh trigger kinds.
const (
	TriggerContentVolume   TriggerKind = "content_volume"
	TriggerEngagementDelta TriggerKind = "engagement_delta"
	TriggerManual          TriggerKind = "manual"
)

// immediatePriority is the bar above which a refresh bypasses normal
// queue delay.
const immediatePriority = 0.8

// refreshDelay batches lower-priority refreshes.
const refreshDelay = 5 * time.Second

// Per-user trigger damping: bursts of trigger events collapse into at
// most one refresh per interval, with a small burst allowance.
const (
	triggerInterval = 30 * time.Second
	triggerBurst    = 2
	maxLimiters     = 100000
)

type triggerLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newTriggerLimiters() *triggerLimiters {
	return &triggerLimiters{limiters: make(map[string]*rate.Limiter)}
}

// allow reports whether a refresh for the user may proceed now.
func (t *triggerLimiters) allow(userID string) bool {
	t.mu.Lock()
	limiter, ok := t.limiters[userID]
	if !ok {
		if len(t.limiters) >= maxLimiters {
			for key := range t.limiters {
				delete(t.limiters, key)
				break
			}
		}
		limiter = rate.NewLimiter(rate.Every(triggerInterval), triggerBurst)
		t.limiters[userID] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow()
}

// TriggerRefresh requests a timeline rebuild for a user. Triggers are
// rate limited per user; a dropped trigger returns false. Priorities
// above immediatePriority schedule the job for immediate pickup, lower
// ones after a short batching delay. The cached timeline is invalidated
// so readers observe the rebuild.
func (s *Scheduler) TriggerRefresh(ctx context.Context, userID string, kind TriggerKind, priority float64) (string, bool) {
	if !s.limiters.allow(userID) {
		metrics.RecordRefreshTrigger(string(kind), false)
		s.logger.Debug().
			Str("user_id", userID).
			Str("trigger", string(kind)).
			Msg("refresh trigger rate limited")
		return "", false
	}
	metrics.RecordRefreshTrigger(string(kind), true)

	if s.cache != nil {
		if err := s.cache.Delete(ctx, userID); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("timeline cache invalidation failed")
		}
	}

	when := s.now()
	if priority <= immediatePriority {
		when = when.Add(refreshDelay)
	}

	jobID := s.ScheduleTimeline(userID, priority, when)

	s.logger.Debug().
		Str("job_id", jobID).
		Str("user_id", userID).
		Str("trigger", string(kind)).
		Float64("priority", priority).
		Msg("refresh trigger accepted")

	return jobID, true
}
