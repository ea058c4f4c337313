// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package vector scores embeddings against each other.
//
// Embeddings produced by different models may coexist, so every comparison
// tolerates mismatched dimensionality: vectors are compared over their
// shared prefix of min(len(a), len(b)) components.
package vector

import (
	"math"
	"slices"
)

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Empty inputs and zero-magnitude prefixes score 0.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	magnitude := math.Sqrt(normA) * math.Sqrt(normB)
	if magnitude == 0 {
		return 0
	}

	// Float rounding can push identical vectors a hair past 1.
	return max(-1, min(1, dot/magnitude))
}

// Normalize returns v scaled to unit L2 length. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	length := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / length)
	}
	return out
}

// Scored pairs an item with its similarity to a query.
type Scored[T any] struct {
	Item  T
	Score float64
}

// TopK ranks items by cosine similarity of their embedding to query and
// returns at most k of them, highest first. Items with empty embeddings are
// excluded; equal scores keep their input order. The result is never nil.
func TopK[T any](query []float32, items []T, embedding func(T) []float32, k int) []Scored[T] {
	if len(query) == 0 || k <= 0 {
		return []Scored[T]{}
	}

	scored := make([]Scored[T], 0, len(items))
	for _, item := range items {
		emb := embedding(item)
		if len(emb) == 0 {
			continue
		}
		scored = append(scored, Scored[T]{Item: item, Score: CosineSimilarity(query, emb)})
	}

	slices.SortStableFunc(scored, func(a, b Scored[T]) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
