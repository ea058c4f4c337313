// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package openrouter configures the OpenAI-compatible provider for the
// OpenRouter gateway.
package openrouter

import (
	"log/slog"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/openai"
)

const (
	Name                  = "openrouter"
	DefaultModel          = "openai/gpt-4o-mini"
	DefaultEmbeddingModel = "openai/text-embedding-3-small"
)

// Config holds OpenRouter provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	Model          string
	EmbeddingModel string
	Logger         *slog.Logger
	Retry          *provider.RetryPolicy
}

// New creates an OpenRouter provider. Returns a not_configured error if the
// API key is missing.
func New(cfg Config) (*openai.Provider, error) {
	base := provider.OpenRouterBaseURL
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return openai.New(openai.Config{
		Name:           Name,
		APIKey:         cfg.APIKey,
		BaseURL:        base,
		Model:          model,
		EmbeddingModel: embeddingModel,
		Logger:         cfg.Logger,
		Retry:          cfg.Retry,
	})
}

// NewFromConfig adapts the registry configuration.
func NewFromConfig(cfg provider.ProviderConfig) (provider.Provider, error) {
	return New(Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Logger:         cfg.Logger,
	})
}
