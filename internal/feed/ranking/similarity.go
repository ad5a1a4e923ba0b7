// Tidefeed - Social Feed Personalization and Ranking Core
// Copyright 2026 Tidefeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tidefeed/tidefeed

package ranking

import (
	"math"
	"strings"

	"github.com/tidefeed/tidefeed/internal/feed"
)

// Method selects the pairwise similarity implementation.
type Method string

// Supported similarity methods.
const (
	// MethodCosine compares embedding vectors.
	MethodCosine Method = "cosine"

	// MethodJaccard compares tag and topic sets.
	MethodJaccard Method = "jaccard"

	// MethodSemantic is a hand-tuned heuristic: shared authorship implies
	// high similarity, shared content type and recency proximity a
	// moderate one.
	MethodSemantic Method = "semantic"

	// MethodHybrid blends cosine, Jaccard, and semantic 0.4/0.3/0.3.
	MethodHybrid Method = "hybrid"
)

// semanticSameAuthor is the similarity assigned to two items by the same
// author under the semantic heuristic.
const semanticSameAuthor = 0.9

// VectorSource resolves content embeddings for items that do not carry one
// inline. Typically backed by the embedding manager's content store.
type VectorSource interface {
	// ContentVector returns the embedding for a content id, if known.
	ContentVector(id string) ([]float64, bool)
}

// similarity computes the pairwise similarity of two items under a method.
// All methods return values in [0, 1].
func similarity(method Method, a, b *feed.ContentItem, vectors VectorSource) float64 {
	switch method {
	case MethodCosine:
		return cosineSimilarity(a, b, vectors)
	case MethodJaccard:
		return jaccardSimilarity(a, b)
	case MethodSemantic:
		return semanticSimilarity(a, b)
	case MethodHybrid:
		return 0.4*cosineSimilarity(a, b, vectors) +
			0.3*jaccardSimilarity(a, b) +
			0.3*semanticSimilarity(a, b)
	default:
		return jaccardSimilarity(a, b)
	}
}

// itemVector resolves an item's embedding, preferring the inline vector.
func itemVector(item *feed.ContentItem, vectors VectorSource) []float64 {
	if len(item.Embedding) > 0 {
		return item.Embedding
	}
	if vectors == nil {
		return nil
	}
	if vec, ok := vectors.ContentVector(item.ID); ok {
		return vec
	}
	return nil
}

// cosineSimilarity compares embeddings, mapped from [-1, 1] to [0, 1].
// Items without a resolvable vector contribute zero similarity.
func cosineSimilarity(a, b *feed.ContentItem, vectors VectorSource) float64 {
	va := itemVector(a, vectors)
	vb := itemVector(b, vectors)
	if len(va) == 0 || len(vb) == 0 || len(va) != len(vb) {
		return 0
	}

	var dot, normA, normB float64
	for i := range va {
		dot += va[i] * vb[i]
		normA += va[i] * va[i]
		normB += vb[i] * vb[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

// jaccardSimilarity compares the union of tags and topics of two items.
func jaccardSimilarity(a, b *feed.ContentItem) float64 {
	setA := labelSet(a)
	setB := labelSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for label := range setA {
		if _, ok := setB[label]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// labelSet collects an item's tags and topics, lowercased.
func labelSet(item *feed.ContentItem) map[string]struct{} {
	set := make(map[string]struct{}, len(item.Tags)+len(item.Metadata.Topics))
	for _, tag := range item.Tags {
		set[strings.ToLower(tag)] = struct{}{}
	}
	for _, topic := range item.Metadata.Topics {
		set[strings.ToLower(topic)] = struct{}{}
	}
	return set
}

// semanticSimilarity applies the authorship/type/recency heuristic.
func semanticSimilarity(a, b *feed.ContentItem) float64 {
	if a.AuthorID != "" && a.AuthorID == b.AuthorID {
		return semanticSameAuthor
	}

	sim := 0.0
	if a.Metadata.ContentType != "" && a.Metadata.ContentType == b.Metadata.ContentType {
		sim += 0.4
	}

	// Recency proximity: items published close together read as related.
	hoursApart := math.Abs(a.CreatedAt.Sub(b.CreatedAt).Hours())
	sim += 0.3 * math.Exp(-hoursApart/24)

	if sim > 1 {
		sim = 1
	}
	return sim
}
