// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/quality

// Package quality assesses content for quality, safety, and spam, and
// blends in time-decayed user feedback.
package quality

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tidefeed/tidefeed/internal/cache"
	"github.com/tidefeed/tidefeed/internal/feed"
	"github.com/tidefeed/tidefeed/internal/logging"
)

// Assessment flags.
const (
	FlagHighQuality            = "high_quality"
	FlagLowQuality             = "low_quality"
	FlagPotentiallyUnsafe      = "potentially_unsafe"
	FlagNeedsReview            = "needs_review"
	FlagSpamDetected           = "spam_detected"
	FlagUserReported           = "user_reported"
	FlagLowEngagementPredicted = "low_engagement_predicted"
)

// Metrics carries the sub-assessment scores, all in [0, 1].
type Metrics struct {
	ContentQuality       float64 `json:"content_quality"`
	SafetyScore          float64 `json:"safety_score"`
	SpamScore            float64 `json:"spam_score"`
	EngagementPrediction float64 `json:"engagement_prediction"`
}

// Assessment is the combined quality verdict for one content item.
type Assessment struct {
	ContentID    string    `json:"content_id"`
	OverallScore float64   `json:"overall_score"`
	Metrics      Metrics   `json:"metrics"`
	Flags        []string  `json:"flags,omitempty"`
	Confidence   float64   `json:"confidence"`
	AssessedAt   time.Time `json:"assessed_at"`
}

// HasFlag reports whether the assessment carries a flag.
func (a Assessment) HasFlag(flag string) bool {
	for _, f := range a.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Config tunes the assessment pipeline.
type Config struct {
	// SafetyThreshold is the minimum safety score to pass.
	SafetyThreshold float64 `koanf:"safety_threshold"`

	// SpamThreshold is the maximum spam score to pass.
	SpamThreshold float64 `koanf:"spam_threshold"`

	// QualityThreshold is the minimum overall score to pass.
	QualityThreshold float64 `koanf:"quality_threshold"`

	// FeedbackWeight is the feedback component's weight in the overall
	// score.
	FeedbackWeight float64 `koanf:"feedback_weight"`

	// CacheSize bounds the assessment cache.
	CacheSize int `koanf:"cache_size"`

	// CacheTTL expires cached assessments.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// DefaultConfig returns the production assessment tuning.
func DefaultConfig() Config {
	return Config{
		SafetyThreshold:  0.7,
		SpamThreshold:    0.3,
		QualityThreshold: 0.4,
		FeedbackWeight:   0.2,
		CacheSize:        10000,
		CacheTTL:         time.Hour,
	}
}

// FilterResult partitions items into those that passed and those that
// were filtered out, with the assessment for every input item.
type FilterResult struct {
	Passed      []feed.ContentItem
	Filtered    []feed.ContentItem
	Assessments []Assessment
}

// Pipeline runs the quality, safety, spam, and feedback sub-assessments
// and caches the combined verdict per content id.
type Pipeline struct {
	cfg      Config
	cache    *cache.LRU[Assessment]
	feedback *feedbackStore
	authors  AuthorRater
	activity PostingActivity
	logger   zerolog.Logger
	now      func() time.Time
}

// NewPipeline creates an assessment pipeline. authors and activity may
// be nil; the corresponding signals then stay neutral.
func NewPipeline(cfg Config, authors AuthorRater, activity PostingActivity) *Pipeline {
	def := DefaultConfig()
	if cfg.SafetyThreshold <= 0 {
		cfg.SafetyThreshold = def.SafetyThreshold
	}
	if cfg.SpamThreshold <= 0 {
		cfg.SpamThreshold = def.SpamThreshold
	}
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = def.QualityThreshold
	}
	if cfg.FeedbackWeight <= 0 {
		cfg.FeedbackWeight = def.FeedbackWeight
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return &Pipeline{
		cfg:      cfg,
		cache:    cache.NewLRU[Assessment](cfg.CacheSize, cfg.CacheTTL),
		feedback: newFeedbackStore(cfg.CacheSize, 30*24*time.Hour),
		authors:  authors,
		activity: activity,
		logger:   logging.With().Str("component", "quality").Logger(),
		now:      time.Now,
	}
}

// Assess returns the assessment for an item, cached per content id until
// new feedback arrives or the TTL expires. Internal failures yield a
// conservative fallback rather than an error.
func (p *Pipeline) Assess(item *feed.ContentItem) Assessment {
	if cached, ok := p.cache.Get(item.ID); ok {
		return cached
	}

	assessment := p.assess(item)
	p.cache.Add(item.ID, assessment)
	return assessment
}

// Filter assesses every item and partitions the list by the passing
// criteria. Input order is preserved within each partition.
func (p *Pipeline) Filter(items []feed.ContentItem) FilterResult {
	res := FilterResult{
		Passed:      make([]feed.ContentItem, 0, len(items)),
		Filtered:    make([]feed.ContentItem, 0),
		Assessments: make([]Assessment, 0, len(items)),
	}

	for i := range items {
		assessment := p.Assess(&items[i])
		res.Assessments = append(res.Assessments, assessment)
		if p.Passes(assessment) {
			res.Passed = append(res.Passed, items[i])
		} else {
			res.Filtered = append(res.Filtered, items[i])
		}
	}
	return res
}

// Passes applies the passing criteria: overall, safety, and spam
// thresholds, and neither the spam nor the unsafe flag.
func (p *Pipeline) Passes(a Assessment) bool {
	return a.OverallScore >= p.cfg.QualityThreshold &&
		a.Metrics.SafetyScore >= p.cfg.SafetyThreshold &&
		a.Metrics.SpamScore <= p.cfg.SpamThreshold &&
		!a.HasFlag(FlagSpamDetected) &&
		!a.HasFlag(FlagPotentiallyUnsafe)
}

// AddFeedback records a feedback event and invalidates the cached
// assessment for its content id.
func (p *Pipeline) AddFeedback(fb Feedback) {
	p.feedback.add(fb)
	p.cache.Remove(fb.ContentID)
}

// FeedbackScore exposes the decayed feedback score for a content id.
func (p *Pipeline) FeedbackScore(contentID string) float64 {
	return p.feedback.score(contentID)
}

// CacheStats returns assessment cache hit/miss counters and size.
func (p *Pipeline) CacheStats() (hits, misses int64, size int) {
	return p.cache.Stats()
}

func (p *Pipeline) assess(item *feed.ContentItem) (assessment Assessment) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("content_id", item.ID).
				Interface("panic", r).
				Msg("assessment failed, substituting fallback")
			assessment = p.fallback(item)
		}
	}()

	now := p.now()

	content := contentQuality(item, p.authors, now)
	safety := assessSafety(item)
	spam := spamScore(item, p.activity)
	engagement := predictEngagement(item)
	feedbackScore := p.feedback.score(item.ID)

	safetyScore := safety.score()

	weightSum := 0.4 + 0.3 + 0.2 + p.cfg.FeedbackWeight
	overall := (0.4*content + 0.3*safetyScore + 0.2*(1-spam) + p.cfg.FeedbackWeight*feedbackScore) / weightSum

	assessment = Assessment{
		ContentID:    item.ID,
		OverallScore: overall,
		Metrics: Metrics{
			ContentQuality:       content,
			SafetyScore:          safetyScore,
			SpamScore:            spam,
			EngagementPrediction: engagement,
		},
		Confidence: p.confidence(item),
		AssessedAt: now,
	}
	assessment.Flags = p.deriveFlags(item, assessment)

	return assessment
}

// deriveFlags computes threshold-based flags for an assessment.
func (p *Pipeline) deriveFlags(item *feed.ContentItem, a Assessment) []string {
	var flags []string

	if a.OverallScore >= 0.8 {
		flags = append(flags, FlagHighQuality)
	}
	if a.OverallScore < p.cfg.QualityThreshold {
		flags = append(flags, FlagLowQuality)
	}

	unsafe := a.Metrics.SafetyScore < p.cfg.SafetyThreshold
	if unsafe {
		flags = append(flags, FlagPotentiallyUnsafe)
	}
	if a.Metrics.SpamScore > p.cfg.SpamThreshold {
		flags = append(flags, FlagSpamDetected)
	}

	reported := p.feedback.hasReports(item.ID)
	if reported {
		flags = append(flags, FlagUserReported)
	}

	// Borderline safety and reported content both warrant review.
	borderline := !unsafe && a.Metrics.SafetyScore < p.cfg.SafetyThreshold+0.15
	if reported || borderline {
		flags = append(flags, FlagNeedsReview)
	}

	if a.Metrics.EngagementPrediction < 0.2 {
		flags = append(flags, FlagLowEngagementPredicted)
	}

	return flags
}

// confidence grows with the information available about an item.
func (p *Pipeline) confidence(item *feed.ContentItem) float64 {
	conf := 0.5
	if len(item.Text) >= minTextLength {
		conf += 0.1
	}
	if metadataCompleteness(item) >= 0.8 {
		conf += 0.1
	}

	feedbackCount := float64(p.feedback.count(item.ID))
	if feedbackCount > 10 {
		feedbackCount = 10
	}
	conf += 0.3 * feedbackCount / 10

	return clamp01(conf)
}

// fallback is the conservative assessment substituted on failure.
func (p *Pipeline) fallback(item *feed.ContentItem) Assessment {
	return Assessment{
		ContentID:    item.ID,
		OverallScore: 0.5,
		Metrics: Metrics{
			ContentQuality:       0.5,
			SafetyScore:          1,
			SpamScore:            0,
			EngagementPrediction: 0.5,
		},
		Flags:      []string{FlagNeedsReview},
		Confidence: 0.1,
		AssessedAt: p.now(),
	}
}
