// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/ranking

// Package ranking implements Maximal Marginal Relevance diversification
// for candidate timelines.
package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/logging"
)

// maxCandidates limits slice allocations to prevent excessive memory usage.
const maxCandidates = 10000

// Config tunes the MMR diversifier.
type Config struct {
	// Lambda balances relevance vs. diversity (1.0 = pure relevance,
	// 0.0 = pure diversity).
	Lambda float64 `koanf:"lambda"`

	// MaxResults caps the length of the diversified timeline.
	MaxResults int `koanf:"max_results"`

	// SimilarityThreshold marks a candidate as a near duplicate of an
	// already selected item. Near duplicates are skipped outright.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// PerformanceTarget bounds the time spent in the selection loop.
	// When exceeded, the remaining slots are filled by relevance order.
	PerformanceTarget time.Duration `koanf:"performance_target"`

	// CacheSize bounds the pairwise similarity memo.
	CacheSize int `koanf:"cache_size"`

	// Method selects the similarity implementation.
	Method Method `koanf:"method"`
}

// DefaultConfig returns the production diversifier tuning.
func DefaultConfig() Config {
	return Config{
		Lambda:              0.7,
		MaxResults:          20,
		SimilarityThreshold: 0.8,
		PerformanceTarget:   20 * time.Millisecond,
		CacheSize:           10000,
		Method:              MethodHybrid,
	}
}

// Result carries the diversified timeline and selection metrics.
type Result struct {
	Items []feed.RankedItem

	// DiversityScore is 1 minus the mean pairwise similarity of the
	// selected items.
	DiversityScore float64

	// AvgRelevance is the mean relevance score of the selected items.
	AvgRelevance float64

	// CacheHitRate is the similarity memo's cumulative hit rate.
	CacheHitRate float64

	// Truncated is set when the performance target was exceeded and the
	// tail was filled by relevance order instead of MMR.
	Truncated bool

	Elapsed time.Duration
}

// Diversifier applies greedy MMR selection over a candidate list.
//
// The MMR formula is:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected]
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type Diversifier struct {
	cfg     Config
	vectors VectorSource
	cache   *similarityCache
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDiversifier creates an MMR diversifier. vectors may be nil when all
// candidates carry inline embeddings.
func NewDiversifier(cfg Config, vectors VectorSource) *Diversifier {
	if cfg.Lambda < 0 {
		cfg.Lambda = 0
	}
	if cfg.Lambda > 1 {
		cfg.Lambda = 1
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	if cfg.Method == "" {
		cfg.Method = MethodHybrid
	}

	return &Diversifier{
		cfg:     cfg,
		vectors: vectors,
		cache:   newSimilarityCache(cfg.CacheSize),
		logger:  logging.With().Str("component", "ranking").Logger(),
		now:     time.Now,
	}
}

// Diversify selects up to MaxResults items balancing relevance against
// similarity to already selected items. Candidates are not mutated.
func (d *Diversifier) Diversify(ctx context.Context, candidates []feed.ContentItem) Result {
	start := d.now()

	if len(candidates) == 0 {
		return Result{Items: []feed.RankedItem{}}
	}

	k := d.cfg.MaxResults
	if k > maxCandidates {
		k = maxCandidates
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	ordered := make([]*feed.ContentItem, len(candidates))
	for i := range candidates {
		ordered[i] = &candidates[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RelevanceScore > ordered[j].RelevanceScore
	})

	// Pure relevance short circuit.
	if d.cfg.Lambda >= 1.0 {
		return d.finish(start, d.rankByRelevance(ordered[:k]), false)
	}

	selected := make([]*feed.ContentItem, 0, k)
	chosen := make(map[int]struct{}, k)
	truncated := false

	for len(selected) < k {
		if ctx.Err() != nil {
			truncated = true
			break
		}
		if d.cfg.PerformanceTarget > 0 && d.now().Sub(start) > d.cfg.PerformanceTarget {
			d.logger.Debug().
				Dur("elapsed", d.now().Sub(start)).
				Int("selected", len(selected)).
				Msg("performance target exceeded, truncating selection")
			truncated = true
			break
		}

		bestIdx := -1
		bestMMR := 0.0

		for i, candidate := range ordered {
			if _, ok := chosen[i]; ok {
				continue
			}

			maxSim := 0.0
			for _, sel := range selected {
				sim := d.pairSimilarity(candidate, sel)
				if sim > maxSim {
					maxSim = sim
				}
			}

			if d.cfg.SimilarityThreshold > 0 && maxSim >= d.cfg.SimilarityThreshold {
				continue
			}

			mmrScore := d.cfg.Lambda*candidate.RelevanceScore - (1-d.cfg.Lambda)*maxSim
			if bestIdx < 0 || mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}

		selected = append(selected, ordered[bestIdx])
		chosen[bestIdx] = struct{}{}
	}

	// A budget cut returns the partial selection as is; callers see the
	// truncation on the result rather than untested backfill items.
	return d.finish(start, d.rank(selected), truncated)
}

// pairSimilarity computes item similarity through the memo cache.
func (d *Diversifier) pairSimilarity(a, b *feed.ContentItem) float64 {
	key := pairKey(d.cfg.Method, a.ID, b.ID)
	if sim, ok := d.cache.get(key); ok {
		return sim
	}
	sim := similarity(d.cfg.Method, a, b, d.vectors)
	d.cache.put(key, sim)
	return sim
}

func (d *Diversifier) rank(items []*feed.ContentItem) []feed.RankedItem {
	ranked := make([]feed.RankedItem, len(items))
	for i, item := range items {
		ranked[i] = feed.RankedItem{Item: *item, Score: item.RelevanceScore}
	}
	return ranked
}

func (d *Diversifier) rankByRelevance(items []*feed.ContentItem) []feed.RankedItem {
	return d.rank(items)
}

// finish computes selection metrics and assembles the result.
func (d *Diversifier) finish(start time.Time, items []feed.RankedItem, truncated bool) Result {
	res := Result{
		Items:        items,
		CacheHitRate: d.cache.hitRate(),
		Truncated:    truncated,
		Elapsed:      d.now().Sub(start),
	}

	if len(items) == 0 {
		return res
	}

	var totalRelevance float64
	for i := range items {
		totalRelevance += items[i].Item.RelevanceScore
	}
	res.AvgRelevance = totalRelevance / float64(len(items))
	res.DiversityScore = d.diversityOf(items)

	return res
}

// diversityOf computes 1 minus the mean pairwise similarity of a ranking.
// Single-item rankings are maximally diverse.
func (d *Diversifier) diversityOf(items []feed.RankedItem) float64 {
	if len(items) < 2 {
		return 1
	}

	var total float64
	pairs := 0
	for i := range items {
		for j := i + 1; j < len(items); j++ {
			total += d.pairSimilarity(&items[i].Item, &items[j].Item)
			pairs++
		}
	}
	return 1 - total/float64(pairs)
}
