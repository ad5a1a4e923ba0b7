// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/quality

package quality

import (
	"regexp"
	"strings"

	"github.com/tidefeed/tidefeed/internal/feed"
)

var linkPattern = regexp.MustCompile(`https?://\S+`)

var promotionalKeywords = []string{
	"buy now", "discount", "promo code", "subscribe", "follow me",
	"check out my", "link in bio", "dm me", "earn money", "giveaway",
}

// suspiciousLinkHosts are shorteners and throwaway domains that spam
// campaigns favor.
var suspiciousLinkHosts = []string{
	"bit.ly", "tinyurl", "t.co/", "goo.gl", ".xyz", ".click", ".top",
}

// PostingActivity supplies behavioral spam signals from outside the
// content itself. A nil provider leaves both signals at zero.
type PostingActivity interface {
	// RapidPostingScore reports posting burstiness for an author in [0, 1].
	RapidPostingScore(authorID string) float64

	// FakeEngagementScore reports suspected inorganic engagement for a
	// content id in [0, 1].
	FakeEngagementScore(contentID string) float64
}

// spamScore blends content and behavioral spam indicators into [0, 1].
// Indicator weights: repetition 0.2, suspicious links 0.25, promotional
// density 0.2, inverse text quality 0.15, rapid posting 0.1, fake
// engagement 0.1.
func spamScore(item *feed.ContentItem, activity PostingActivity) float64 {
	text := strings.ToLower(item.Text)
	words := strings.Fields(text)

	repetition := repetitionRatio(words)
	links := suspiciousLinkRatio(text, len(words))
	promo := promotionalDensity(text, len(words))
	inverseQuality := 1 - textQuality(item.Text)

	rapid, fake := 0.0, 0.0
	if activity != nil {
		rapid = clamp01(activity.RapidPostingScore(item.AuthorID))
		fake = clamp01(activity.FakeEngagementScore(item.ID))
	}

	score := 0.2*repetition +
		0.25*links +
		0.2*promo +
		0.15*inverseQuality +
		0.1*rapid +
		0.1*fake

	return clamp01(score)
}

// suspiciousLinkRatio measures link density, weighting known-bad hosts
// double.
func suspiciousLinkRatio(text string, wordCount int) float64 {
	links := linkPattern.FindAllString(text, -1)
	if len(links) == 0 {
		return 0
	}

	weight := 0.0
	for _, link := range links {
		w := 1.0
		for _, host := range suspiciousLinkHosts {
			if strings.Contains(link, host) {
				w = 2.0
				break
			}
		}
		weight += w
	}

	if wordCount < 1 {
		wordCount = 1
	}
	return clamp01(weight * 4 / float64(wordCount))
}

// promotionalDensity measures promotional keyword hits relative to length.
func promotionalDensity(text string, wordCount int) float64 {
	hits := 0
	for _, keyword := range promotionalKeywords {
		if strings.Contains(text, keyword) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	if wordCount < 10 {
		wordCount = 10
	}
	return clamp01(float64(hits) * 10 / float64(wordCount))
}
