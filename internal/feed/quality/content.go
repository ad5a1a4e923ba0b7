// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/quality

package quality

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/tidefeed/tidefeed/internal/feed"
)

// Text length band considered well-formed.
const (
	minTextLength = 50
	maxTextLength = 2000
)

// AuthorRater supplies an author quality proxy in [0, 1]. Implementations
// typically aggregate historical assessment scores per author.
type AuthorRater interface {
	AuthorQuality(authorID string) float64
}

// contentQuality scores an item's intrinsic quality in [0, 1] from text
// heuristics, metadata completeness, the author proxy, and freshness.
// Component weights: text 0.4, metadata 0.2, author 0.2, freshness 0.2.
func contentQuality(item *feed.ContentItem, authors AuthorRater, now time.Time) float64 {
	text := textQuality(item.Text)
	meta := metadataCompleteness(item)
	author := 0.5
	if authors != nil {
		author = clamp01(authors.AuthorQuality(item.AuthorID))
	}
	fresh := freshness(item.CreatedAt, now)

	return 0.4*text + 0.2*meta + 0.2*author + 0.2*fresh
}

// textQuality applies length, structure, shouting, punctuation, and
// repetition heuristics.
func textQuality(text string) float64 {
	if text == "" {
		return 0.3
	}

	score := 0.0

	// Length band.
	n := len(text)
	switch {
	case n >= minTextLength && n <= maxTextLength:
		score += 0.3
	case n < minTextLength:
		score += 0.3 * float64(n) / minTextLength
	default:
		score += 0.15
	}

	// Word and sentence structure.
	words := strings.Fields(text)
	sentences := countSentences(text)
	if len(words) >= 8 {
		score += 0.2
	} else {
		score += 0.2 * float64(len(words)) / 8
	}
	if sentences > 1 {
		score += 0.1
	}

	// Shouting ratio.
	if shoutingRatio(text) < 0.3 {
		score += 0.15
	}

	// Punctuation presence.
	if strings.ContainsAny(text, ".!?,;:") {
		score += 0.1
	}

	// Repetition penalty.
	score += 0.15 * (1 - repetitionRatio(words))

	return clamp01(score)
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	return count
}

// shoutingRatio is the fraction of letters that are upper case.
func shoutingRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// repetitionRatio measures how much of the text repeats the same words.
func repetitionRatio(words []string) float64 {
	if len(words) < 2 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(words))
}

// metadataCompleteness rewards items carrying full metadata.
func metadataCompleteness(item *feed.ContentItem) float64 {
	score := 0.0
	if item.Metadata.ContentType != "" {
		score += 0.4
	}
	if len(item.Metadata.Topics) > 0 || len(item.Tags) > 0 {
		score += 0.4
	}
	if item.Metadata.Sentiment != "" {
		score += 0.2
	}
	return score
}

// freshness decays with a 24-hour scale.
func freshness(createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-ageHours / 24)
}

// predictEngagement estimates the likelihood of further engagement from
// current counts and relevance.
func predictEngagement(item *feed.ContentItem) float64 {
	engagement := float64(item.Likes + 2*item.Comments + 3*item.Shares)
	saturated := 1 - math.Exp(-engagement/20)
	return clamp01(0.5*saturated + 0.5*item.RelevanceScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
