// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"math"
	"strings"

	"github.com/squirrel-notes/squirrel/pkg/vector"
)

// HashDimensions is the width of heuristic embeddings.
const HashDimensions = 384

// HashEmbeddingModel stamps notes embedded by HashEmbedding.
const HashEmbeddingModel = "squirrel-hash-384"

// HashEmbedding returns a deterministic, L2-normalized pseudo-embedding.
// Each character of word i at position j adds sin(code*0.1)/(i+1) to slot
// (code*(i+1)*(j+1)) mod 384. It only captures lexical overlap.
func HashEmbedding(text string) []float32 {
	acc := make([]float64, HashDimensions)
	for i, word := range strings.Fields(strings.ToLower(text)) {
		j := 0
		for _, r := range word {
			code := int(r)
			idx := (code * (i + 1) * (j + 1)) % HashDimensions
			acc[idx] += math.Sin(float64(code)*0.1) / float64(i+1)
			j++
		}
	}

	out := make([]float32, HashDimensions)
	for i, v := range acc {
		out[i] = float32(v)
	}
	return vector.Normalize(out)
}
