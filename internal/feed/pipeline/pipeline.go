// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/pipeline

// Package pipeline chains the feed stages into a timeline build:
// quality filter, embedding lookups, MMR selection, signal injection,
// and the post-injection quality veto.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/embedding"
	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/feed/injection"
	"github.com/tidefeed/tidefeed/internal/feed/quality"
	"github.com/tidefeed/tidefeed/internal/feed/ranking"
	"github.com/tidefeed/tidefeed/internal/logging"
	"github.com/tidefeed/tidefeed/internal/metrics"
)

// Request carries one timeline build's inputs.
type Request struct {
	User feed.UserContext

	// Candidates are the scored posts considered for the personalized
	// portion of the timeline.
	Candidates []feed.ContentItem

	// Pool holds extra posts available to the injection signals. May be
	// empty.
	Pool []feed.ContentItem
}

// Pipeline owns the stage components for timeline builds.
type Pipeline struct {
	quality    *quality.Pipeline
	ranker     *ranking.Diversifier
	injector   *injection.Injector
	embeddings *embedding.Manager
	logger     zerolog.Logger
	now        func() time.Time
}

// New assembles a pipeline from its stage components. embeddings may be
// nil, in which case similarity falls back to inline vectors and label
// sets.
func New(q *quality.Pipeline, r *ranking.Diversifier, inj *injection.Injector, em *embedding.Manager) *Pipeline {
	return &Pipeline{
		quality:    q,
		ranker:     r,
		injector:   inj,
		embeddings: em,
		logger:     logging.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
	}
}

// BuildTimeline produces the final ordered feed for a user. Stage
// failures degrade the result rather than aborting it; a total failure
// yields a recency-ordered feed marked low confidence.
func (p *Pipeline) BuildTimeline(ctx context.Context, req Request) (result feed.TimelineResult) {
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("user_id", req.User.UserID).
				Interface("panic", r).
				Msg("timeline build failed, falling back to recency order")
			result = p.recencyFallback(req, start)
		}
	}()

	filtered := p.quality.Filter(req.Candidates)

	p.attachEmbeddings(filtered.Passed, req.User.UserID)

	ranked := p.ranker.Diversify(ctx, filtered.Passed)

	injected := p.injector.Inject(ctx, ranked.Items, req.Pool, req.User)

	items := p.vetoInjected(injected.Items)

	counts := make(map[string]int, len(injected.PerSignalCounts))
	for signal, n := range injected.PerSignalCounts {
		counts[string(signal)] = n
	}

	elapsed := p.now().Sub(start)
	metrics.RecordTimelineBuild(elapsed, false, len(items), ranked.DiversityScore)
	metrics.RecordInjections(counts)
	if ranked.Truncated {
		metrics.RankingTruncations.Inc()
	}
	p.logger.Debug().
		Str("user_id", req.User.UserID).
		Int("candidates", len(req.Candidates)).
		Int("selected", len(items)).
		Dur("elapsed", elapsed).
		Msg("timeline built")

	return feed.TimelineResult{
		UserID:         req.User.UserID,
		Items:          items,
		DiversityScore: ranked.DiversityScore,
		AvgRelevance:   ranked.AvgRelevance,
		InjectedCounts: counts,
		GeneratedAt:    start,
		ElapsedMS:      elapsed.Milliseconds(),
	}
}

// AddFeedback forwards a feedback event to the quality pipeline.
func (p *Pipeline) AddFeedback(fb quality.Feedback) {
	p.quality.AddFeedback(fb)
}

// attachEmbeddings resolves content vectors for items lacking one and
// touches the user's own embedding so activity keeps it retained.
func (p *Pipeline) attachEmbeddings(items []feed.ContentItem, userID string) {
	if p.embeddings == nil {
		return
	}

	if userID != "" {
		if _, err := p.embeddings.GetOrCreate(embedding.EntityUser, userID); err != nil {
			p.logger.Warn().Err(err).Str("user_id", userID).Msg("user embedding lookup failed")
		}
	}

	for i := range items {
		if len(items[i].Embedding) > 0 {
			continue
		}
		vec, err := p.embeddings.GetOrCreate(embedding.EntityContent, items[i].ID)
		if err != nil {
			continue
		}
		items[i].Embedding = vec
	}
}

// vetoInjected re-checks injected items against the quality gate,
// dropping failures. Personalized items already passed the pre-filter.
func (p *Pipeline) vetoInjected(items []feed.RankedItem) []feed.RankedItem {
	out := items[:0:len(items)]
	for i := range items {
		if items[i].InjectedBy != "" {
			if a := p.quality.Assess(&items[i].Item); !p.quality.Passes(a) {
				p.logger.Debug().
					Str("content_id", items[i].Item.ID).
					Str("signal", items[i].InjectedBy).
					Msg("injected item vetoed by quality gate")
				continue
			}
		}
		out = append(out, items[i])
	}
	return out
}

// recencyFallback is the degraded result on total pipeline failure.
func (p *Pipeline) recencyFallback(req Request, start time.Time) feed.TimelineResult {
	items := make([]feed.RankedItem, len(req.Candidates))
	for i := range req.Candidates {
		items[i] = feed.RankedItem{Item: req.Candidates[i], Score: req.Candidates[i].RelevanceScore}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Item.CreatedAt.After(items[j].Item.CreatedAt)
	})

	metrics.RecordTimelineBuild(p.now().Sub(start), true, len(items), 0)

	return feed.TimelineResult{
		UserID:        req.User.UserID,
		Items:         items,
		LowConfidence: true,
		GeneratedAt:   start,
		ElapsedMS:     p.now().Sub(start).Milliseconds(),
	}
}
