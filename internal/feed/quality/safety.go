// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/quality

package quality

import (
	"strings"

	"github.com/tidefeed/tidefeed/internal/feed"
)

// Safety keyword buckets. Each hit raises the category's score; the
// per-hit increment is tuned so a single stray word stays below typical
// thresholds while repeated or mixed hits do not.
var safetyCategories = map[string][]string{
	"harassment": {
		"kill yourself", "nobody likes you", "loser", "pathetic", "worthless",
		"shut up", "idiot", "moron",
	},
	"hate": {
		"subhuman", "vermin", "go back to your country", "your kind",
		"racial slur", "ethnic cleansing",
	},
	"violence": {
		"i will hurt", "beat you up", "shoot up", "bomb threat",
		"deserve to die", "watch your back",
	},
	"adult": {
		"explicit content", "nsfw", "xxx", "onlyfans",
	},
	"spam": {
		"click here now", "limited time offer", "act now", "free money",
		"guaranteed winner",
	},
	"misinformation": {
		"doctors hate this", "cure they hide", "proven hoax",
		"mainstream media lies", "do your own research sheeple",
	},
}

const safetyHitIncrement = 0.35

// safetyResult carries the per-category scores of a safety scan.
type safetyResult struct {
	categories  map[string]float64
	maxCategory float64
	topCategory string
}

// score returns the safety metric: 1 minus the worst category score.
func (r safetyResult) score() float64 {
	return 1 - r.maxCategory
}

// assessSafety scans text, tags, and topics against the keyword buckets.
func assessSafety(item *feed.ContentItem) safetyResult {
	haystack := strings.ToLower(item.Text + " " + strings.Join(item.Tags, " ") + " " + strings.Join(item.Metadata.Topics, " "))

	res := safetyResult{categories: make(map[string]float64, len(safetyCategories))}
	for category, keywords := range safetyCategories {
		score := 0.0
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				score += safetyHitIncrement
			}
		}
		score = clamp01(score)
		res.categories[category] = score
		if score > res.maxCategory {
			res.maxCategory = score
			res.topCategory = category
		}
	}
	return res
}
