// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed/internal/feed/injection

package injection

// Signal names an injection source.
type Signal string

// Injection signals, in splice precedence order.
const (
	SignalTrending           Signal = "trending"
	SignalFresh              Signal = "fresh"
	SignalCrossTopic         Signal = "cross_topic"
	SignalSerendipity        Signal = "serendipity"
	SignalQualityBoost       Signal = "quality_boost"
	SignalCommunityHighlight Signal = "community_highlight"
)

// AllSignals lists the signals in splice precedence order.
var AllSignals = []Signal{
	SignalTrending,
	SignalFresh,
	SignalCrossTopic,
	SignalSerendipity,
	SignalQualityBoost,
	SignalCommunityHighlight,
}

// Strategy controls how one signal contributes items to a timeline.
type Strategy struct {
	Signal Signal `koanf:"signal"`

	// Weight scales the signal's selection scores, in [0, 1].
	Weight float64 `koanf:"weight"`

	// Frequency is the gap in timeline positions between injections.
	Frequency int `koanf:"frequency"`

	// MaxInjections caps the items this signal may contribute per call.
	MaxInjections int `koanf:"max_injections"`

	Enabled bool `koanf:"enabled"`

	// CommunityAdaptive lets the strategy be rescaled by community size
	// before each injection pass.
	CommunityAdaptive bool `koanf:"community_adaptive"`
}

// Community size boundaries for adaptive strategies.
const (
	smallCommunity = 1000
	largeCommunity = 50000
)

// DefaultStrategies returns the production strategy set, keyed by signal.
func DefaultStrategies() map[Signal]Strategy {
	return map[Signal]Strategy{
		SignalTrending: {
			Signal: SignalTrending, Weight: 0.8, Frequency: 5,
			MaxInjections: 3, Enabled: true, CommunityAdaptive: true,
		},
		SignalFresh: {
			Signal: SignalFresh, Weight: 0.6, Frequency: 7,
			MaxInjections: 2, Enabled: true, CommunityAdaptive: true,
		},
		SignalCrossTopic: {
			Signal: SignalCrossTopic, Weight: 0.5, Frequency: 10,
			MaxInjections: 2, Enabled: true, CommunityAdaptive: false,
		},
		SignalSerendipity: {
			Signal: SignalSerendipity, Weight: 0.4, Frequency: 12,
			MaxInjections: 1, Enabled: true, CommunityAdaptive: true,
		},
		SignalQualityBoost: {
			Signal: SignalQualityBoost, Weight: 0.7, Frequency: 8,
			MaxInjections: 2, Enabled: true, CommunityAdaptive: false,
		},
		SignalCommunityHighlight: {
			Signal: SignalCommunityHighlight, Weight: 0.5, Frequency: 9,
			MaxInjections: 1, Enabled: true, CommunityAdaptive: true,
		},
	}
}

// adaptForCommunity rescales adaptive strategies by community size and
// returns the adjusted copies. Small communities lean on serendipity to
// surface unfamiliar voices; large ones lean on trending and fresh.
func adaptForCommunity(strategies map[Signal]Strategy, communitySize int) map[Signal]Strategy {
	adapted := make(map[Signal]Strategy, len(strategies))
	for signal, strategy := range strategies {
		adapted[signal] = strategy
	}

	switch {
	case communitySize > 0 && communitySize < smallCommunity:
		if s, ok := adapted[SignalSerendipity]; ok && s.CommunityAdaptive {
			s.Weight = clampWeight(s.Weight * 1.5)
			adapted[SignalSerendipity] = s
		}
		if s, ok := adapted[SignalTrending]; ok && s.CommunityAdaptive {
			s.Frequency = s.Frequency - 2
			if s.Frequency < 2 {
				s.Frequency = 2
			}
			adapted[SignalTrending] = s
		}
	case communitySize > largeCommunity:
		if s, ok := adapted[SignalTrending]; ok && s.CommunityAdaptive {
			s.Weight = clampWeight(s.Weight * 1.25)
			adapted[SignalTrending] = s
		}
		if s, ok := adapted[SignalFresh]; ok && s.CommunityAdaptive {
			s.Weight = clampWeight(s.Weight * 1.25)
			adapted[SignalFresh] = s
		}
	}

	return adapted
}

func clampWeight(w float64) float64 {
	if w > 1 {
		return 1
	}
	if w < 0 {
		return 0
	}
	return w
}
