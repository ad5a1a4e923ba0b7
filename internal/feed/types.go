// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

// Package feed defines the shared content, user, and timeline types
// consumed by the ranking, injection, quality, and pipeline packages.
package feed

import (
	"time"
)

// ContentType classifies a content item.
type ContentType string

// Known content types.
const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
	ContentTypeLink  ContentType = "link"
)

// Sentiment is a coarse sentiment label attached by upstream analysis.
type Sentiment string

// Known sentiment labels.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Metadata carries the optional descriptive fields of a content item.
type Metadata struct {
	// ContentType is the item's media class.
	ContentType ContentType `json:"content_type"`

	// Topics are upstream-assigned topic labels.
	Topics []string `json:"topics,omitempty"`

	// Sentiment is the item's coarse sentiment.
	Sentiment Sentiment `json:"sentiment,omitempty"`
}

// ContentItem is the ranking unit. It is an immutable input: pipeline
// stages annotate results with scores rather than mutating the item.
type ContentItem struct {
	// ID uniquely identifies the item.
	ID string `json:"id"`

	// AuthorID identifies the item's author.
	AuthorID string `json:"author_id"`

	// Text is the item body, empty for non-text items.
	Text string `json:"text,omitempty"`

	// Tags are free-form labels set by the author.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is the item's publication time.
	CreatedAt time.Time `json:"created_at"`

	// RelevanceScore is the upstream per-user relevance in [0, 1].
	RelevanceScore float64 `json:"relevance_score"`

	// Embedding is an optional pre-computed vector. Nil means absent;
	// consumers fall back to the embedding manager or non-vector
	// similarity methods.
	Embedding []float64 `json:"embedding,omitempty"`

	// Metadata holds the optional descriptive fields.
	Metadata Metadata `json:"metadata"`

	// Engagement counters used by trending and quality signals.
	Likes    int `json:"likes,omitempty"`
	Shares   int `json:"shares,omitempty"`
	Comments int `json:"comments,omitempty"`
}

// RankedItem is a content item with the scores attached by the pipeline.
type RankedItem struct {
	// Item is the underlying content.
	Item ContentItem `json:"item"`

	// Score is the final ranking score.
	Score float64 `json:"score"`

	// InjectedBy names the injection signal that introduced this item,
	// empty for organically ranked items. Used for UI attribution.
	InjectedBy string `json:"injected_by,omitempty"`
}

// UserContext describes the requesting user for ranking and injection.
type UserContext struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// KnownAuthors are authors the user already follows or interacts with.
	KnownAuthors map[string]struct{} `json:"-"`

	// Topics are the user's established interest topics.
	Topics map[string]struct{} `json:"-"`

	// CommunitySize is the number of active users in the user's community,
	// used by community-adaptive injection strategies.
	CommunitySize int `json:"community_size"`
}

// TimelineResult is the final ordered feed for a user.
type TimelineResult struct {
	// UserID is the user the timeline was built for.
	UserID string `json:"user_id"`

	// Items is the final ordered feed.
	Items []RankedItem `json:"items"`

	// DiversityScore is 1 minus the mean pairwise similarity of the
	// selected items.
	DiversityScore float64 `json:"diversity_score"`

	// AvgRelevance is the mean relevance of the selected items.
	AvgRelevance float64 `json:"avg_relevance"`

	// InjectedCounts maps injection signal names to the number of items
	// each contributed.
	InjectedCounts map[string]int `json:"injected_counts,omitempty"`

	// LowConfidence marks a timeline produced by the fallback path after
	// a pipeline failure (plain recency order).
	LowConfidence bool `json:"low_confidence,omitempty"`

	// GeneratedAt is when the timeline was materialized.
	GeneratedAt time.Time `json:"generated_at"`

	// ElapsedMS is the total build latency in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`
}
