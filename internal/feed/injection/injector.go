// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/injection

// Package injection splices signal-selected content into a personalized
// timeline at controlled intervals.
package injection

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/logging"
)

// qualityBoostFloor is the minimum relevance score for an item to be
// eligible for the quality_boost signal.
const qualityBoostFloor = 0.75

// Config tunes the injector.
type Config struct {
	// Strategies overrides the default per-signal strategy set.
	Strategies map[Signal]Strategy `koanf:"-"`

	// SerendipityQualityFloor is the minimum relevance score for a
	// serendipity candidate.
	SerendipityQualityFloor float64 `koanf:"serendipity_quality_floor"`

	// FreshWindow is the maximum content age for the fresh signal.
	FreshWindow time.Duration `koanf:"fresh_window"`

	// Seed makes serendipity sampling reproducible when nonzero.
	Seed int64 `koanf:"seed"`
}

// DefaultConfig returns the production injector tuning.
func DefaultConfig() Config {
	return Config{
		SerendipityQualityFloor: 0.5,
		FreshWindow:             2 * time.Hour,
	}
}

// Result carries the spliced timeline and injection metrics.
type Result struct {
	Items []feed.RankedItem

	// PerSignalCounts records how many items each signal contributed.
	PerSignalCounts map[Signal]int

	// DiversityImprovement is the weighted growth of the timeline's
	// author, topic, and content-type sets after injection.
	DiversityImprovement float64
}

// Injector selects extra candidates per signal and splices them into a
// personalized timeline.
type Injector struct {
	mu         sync.Mutex
	strategies map[Signal]Strategy
	velocity   *VelocityTracker
	cfg        Config
	rng        *rand.Rand
	logger     zerolog.Logger
	now        func() time.Time
}

// NewInjector creates an injector. velocity may be nil, in which case
// trending scores fall back to cumulative engagement counts.
func NewInjector(cfg Config, velocity *VelocityTracker) *Injector {
	if cfg.SerendipityQualityFloor <= 0 {
		cfg.SerendipityQualityFloor = DefaultConfig().SerendipityQualityFloor
	}
	if cfg.FreshWindow <= 0 {
		cfg.FreshWindow = DefaultConfig().FreshWindow
	}

	strategies := cfg.Strategies
	if strategies == nil {
		strategies = DefaultStrategies()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Injector{
		strategies: strategies,
		velocity:   velocity,
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		logger:     logging.With().Str("component", "injection").Logger(),
		now:        time.Now,
	}
}

// UpdateStrategy replaces the strategy for its signal.
func (inj *Injector) UpdateStrategy(strategy Strategy) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.strategies[strategy.Signal] = strategy
}

// Strategy returns the current strategy for a signal.
func (inj *Injector) Strategy(signal Signal) (Strategy, bool) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	s, ok := inj.strategies[signal]
	return s, ok
}

// Inject selects candidates per enabled signal from the pool, excluding
// ids already present in the personalized timeline, and splices them in
// at each strategy's frequency interval.
func (inj *Injector) Inject(ctx context.Context, personalized []feed.RankedItem, pool []feed.ContentItem, user feed.UserContext) Result {
	res := Result{
		Items:           personalized,
		PerSignalCounts: make(map[Signal]int, len(AllSignals)),
	}
	if len(pool) == 0 || len(personalized) == 0 {
		return res
	}

	inj.mu.Lock()
	strategies := adaptForCommunity(inj.strategies, user.CommunitySize)
	inj.mu.Unlock()

	seen := make(map[string]struct{}, len(personalized)+len(pool))
	for i := range personalized {
		seen[personalized[i].Item.ID] = struct{}{}
	}

	timeline := make([]feed.RankedItem, len(personalized))
	copy(timeline, personalized)

	now := inj.now()

	for _, signal := range AllSignals {
		if ctx.Err() != nil {
			break
		}

		strategy, ok := strategies[signal]
		if !ok || !strategy.Enabled || strategy.Frequency <= 0 {
			continue
		}

		limit := strategy.MaxInjections
		if byLength := len(personalized) / strategy.Frequency; byLength < limit {
			limit = byLength
		}
		if limit <= 0 {
			continue
		}

		candidates := inj.eligible(pool, seen)
		if len(candidates) == 0 {
			continue
		}

		selected := inj.selectFor(signal, strategy, candidates, limit, user, now)
		if len(selected) == 0 {
			continue
		}

		for _, item := range selected {
			seen[item.ID] = struct{}{}
		}

		timeline = spliceItems(timeline, selected, signal, strategy)
		res.PerSignalCounts[signal] = len(selected)
	}

	res.Items = timeline
	res.DiversityImprovement = diversityImprovement(personalized, timeline)

	inj.logger.Debug().
		Str("user_id", user.UserID).
		Int("injected", len(timeline)-len(personalized)).
		Float64("diversity_improvement", res.DiversityImprovement).
		Msg("injection pass complete")

	return res
}

// eligible returns pool items not yet present in the timeline.
func (inj *Injector) eligible(pool []feed.ContentItem, seen map[string]struct{}) []*feed.ContentItem {
	out := make([]*feed.ContentItem, 0, len(pool))
	for i := range pool {
		if _, ok := seen[pool[i].ID]; ok {
			continue
		}
		out = append(out, &pool[i])
	}
	return out
}

// selectFor applies the signal-specific selection rule.
func (inj *Injector) selectFor(signal Signal, strategy Strategy, candidates []*feed.ContentItem, limit int, user feed.UserContext, now time.Time) []*feed.ContentItem {
	switch signal {
	case SignalTrending:
		return inj.selectTrending(candidates, limit, now)
	case SignalFresh:
		return inj.selectFresh(candidates, limit, now)
	case SignalCrossTopic:
		return selectCrossTopic(candidates, limit, user)
	case SignalSerendipity:
		return inj.selectSerendipity(candidates, limit, user)
	case SignalQualityBoost:
		return selectQualityBoost(candidates, limit)
	case SignalCommunityHighlight:
		return selectCommunityHighlight(candidates, limit)
	default:
		return nil
	}
}

// selectTrending picks the top items by decayed engagement velocity.
func (inj *Injector) selectTrending(candidates []*feed.ContentItem, limit int, now time.Time) []*feed.ContentItem {
	type scored struct {
		item  *feed.ContentItem
		score float64
	}

	ranked := make([]scored, 0, len(candidates))
	for _, item := range candidates {
		score := inj.velocity.trendingScore(item, now)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{item: item, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*feed.ContentItem, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].item
	}
	return out
}

// selectFresh picks the newest items within the fresh window.
func (inj *Injector) selectFresh(candidates []*feed.ContentItem, limit int, now time.Time) []*feed.ContentItem {
	fresh := make([]*feed.ContentItem, 0, len(candidates))
	for _, item := range candidates {
		if now.Sub(item.CreatedAt) <= inj.cfg.FreshWindow {
			fresh = append(fresh, item)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].CreatedAt.After(fresh[j].CreatedAt) })

	if len(fresh) > limit {
		fresh = fresh[:limit]
	}
	return fresh
}

// selectCrossTopic picks items whose labels are disjoint from the user's
// topic set, most relevant first.
func selectCrossTopic(candidates []*feed.ContentItem, limit int, user feed.UserContext) []*feed.ContentItem {
	userTopics := make(map[string]struct{}, len(user.Topics))
	for topic := range user.Topics {
		userTopics[strings.ToLower(topic)] = struct{}{}
	}

	out := make([]*feed.ContentItem, 0, limit)
	for _, item := range candidates {
		if overlapsTopics(item, userTopics) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func overlapsTopics(item *feed.ContentItem, topics map[string]struct{}) bool {
	for _, tag := range item.Tags {
		if _, ok := topics[strings.ToLower(tag)]; ok {
			return true
		}
	}
	for _, topic := range item.Metadata.Topics {
		if _, ok := topics[strings.ToLower(topic)]; ok {
			return true
		}
	}
	return false
}

// selectSerendipity samples items from unfamiliar authors above the
// quality floor.
func (inj *Injector) selectSerendipity(candidates []*feed.ContentItem, limit int, user feed.UserContext) []*feed.ContentItem {
	known := make(map[string]struct{}, len(user.KnownAuthors))
	for author := range user.KnownAuthors {
		known[author] = struct{}{}
	}

	eligible := make([]*feed.ContentItem, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := known[item.AuthorID]; ok {
			continue
		}
		if item.RelevanceScore < inj.cfg.SerendipityQualityFloor {
			continue
		}
		eligible = append(eligible, item)
	}

	inj.mu.Lock()
	inj.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	inj.mu.Unlock()

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible
}

// selectQualityBoost picks the most relevant items above the boost floor.
func selectQualityBoost(candidates []*feed.ContentItem, limit int) []*feed.ContentItem {
	out := make([]*feed.ContentItem, 0, limit)
	for _, item := range candidates {
		if item.RelevanceScore >= qualityBoostFloor {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// selectCommunityHighlight picks the most engaged-with items.
func selectCommunityHighlight(candidates []*feed.ContentItem, limit int) []*feed.ContentItem {
	engaged := make([]*feed.ContentItem, 0, len(candidates))
	for _, item := range candidates {
		if engagementTotal(item) > 0 {
			engaged = append(engaged, item)
		}
	}
	sort.SliceStable(engaged, func(i, j int) bool {
		return engagementTotal(engaged[i]) > engagementTotal(engaged[j])
	})

	if len(engaged) > limit {
		engaged = engaged[:limit]
	}
	return engaged
}

func engagementTotal(item *feed.ContentItem) int {
	return item.Likes*likeWeight + item.Comments*commentWeight + item.Shares*shareWeight
}

// spliceItems inserts the signal's items every Frequency positions,
// tagging each with the originating signal. Positions past the end of
// the timeline append.
func spliceItems(timeline []feed.RankedItem, items []*feed.ContentItem, signal Signal, strategy Strategy) []feed.RankedItem {
	pos := strategy.Frequency
	for _, item := range items {
		injected := feed.RankedItem{
			Item:       *item,
			Score:      item.RelevanceScore * strategy.Weight,
			InjectedBy: string(signal),
		}

		if pos >= len(timeline) {
			timeline = append(timeline, injected)
		} else {
			timeline = append(timeline, feed.RankedItem{})
			copy(timeline[pos+1:], timeline[pos:])
			timeline[pos] = injected
		}
		pos += strategy.Frequency + 1
	}
	return timeline
}

// diversityImprovement reports the weighted growth (0.4 author, 0.4
// topic, 0.2 content type) in label set sizes from before to after.
func diversityImprovement(before, after []feed.RankedItem) float64 {
	authorsBefore, topicsBefore, typesBefore := labelSets(before)
	authorsAfter, topicsAfter, typesAfter := labelSets(after)

	return 0.4*growthRatio(authorsBefore, authorsAfter) +
		0.4*growthRatio(topicsBefore, topicsAfter) +
		0.2*growthRatio(typesBefore, typesAfter)
}

func labelSets(items []feed.RankedItem) (authors, topics, types map[string]struct{}) {
	authors = make(map[string]struct{})
	topics = make(map[string]struct{})
	types = make(map[string]struct{})
	for i := range items {
		item := &items[i].Item
		if item.AuthorID != "" {
			authors[item.AuthorID] = struct{}{}
		}
		for _, tag := range item.Tags {
			topics[strings.ToLower(tag)] = struct{}{}
		}
		for _, topic := range item.Metadata.Topics {
			topics[strings.ToLower(topic)] = struct{}{}
		}
		if item.Metadata.ContentType != "" {
			types[string(item.Metadata.ContentType)] = struct{}{}
		}
	}
	return authors, topics, types
}

func growthRatio(before, after map[string]struct{}) float64 {
	base := len(before)
	if base == 0 {
		base = 1
	}
	return float64(len(after)-len(before)) / float64(base)
}
