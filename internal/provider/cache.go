// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the number of texts whose embeddings are kept.
const DefaultEmbeddingCacheSize = 256

type cachedEmbedding struct {
	vector []float32
	model  string
}

// cachedProvider memoizes embeddings by exact input text.
type cachedProvider struct {
	Provider
	cache *lru.Cache[string, cachedEmbedding]
}

// WithEmbeddingCache wraps p so repeated embedding requests for the same text
// are served from an LRU cache. A size <= 0 returns p unchanged. Embeddings
// from a model other than p's own, such as a degraded fallback, are not
// cached.
func WithEmbeddingCache(p Provider, size int) Provider {
	if size <= 0 {
		return p
	}
	cache, err := lru.New[string, cachedEmbedding](size)
	if err != nil {
		return p
	}
	return &cachedProvider{Provider: p, cache: cache}
}

func (c *cachedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, _, err := c.EmbedWithModel(ctx, text)
	return v, err
}

func (c *cachedProvider) EmbedWithModel(ctx context.Context, text string) ([]float32, string, error) {
	if e, ok := c.cache.Get(text); ok {
		return slices.Clone(e.vector), e.model, nil
	}
	v, model, err := Embed(ctx, c.Provider, text)
	if err != nil {
		return nil, "", err
	}
	if model == EmbeddingModelOf(c.Provider) {
		c.cache.Add(text, cachedEmbedding{vector: slices.Clone(v), model: model})
	}
	return v, model, nil
}

func (c *cachedProvider) EmbeddingModel() string {
	return EmbeddingModelOf(c.Provider)
}

// Unwrap returns the wrapped provider.
func (c *cachedProvider) Unwrap() Provider {
	return c.Provider
}
