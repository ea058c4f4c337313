// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"context"
	"log/slog"
)

// Provider is the AI capability surface used by the knowledge service.
// Implementations must be safe for concurrent use after Initialize returns.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
	Available(ctx context.Context) bool
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// GenerateCompletion answers prompt, prefixing the optional context.
	GenerateCompletion(ctx context.Context, prompt, contextText string) (string, error)
	// GenerateTags returns at most five normalized tags for content.
	GenerateTags(ctx context.Context, content string) ([]string, error)
	AnswerQuestion(ctx context.Context, question, contextText string) (string, error)
	Status(ctx context.Context) (ProviderStatus, error)
	Close() error
}

// EmbeddingModeler names the model that produced a provider's embeddings.
// Notes are stamped with it so vectors from different spaces can be told apart.
type EmbeddingModeler interface {
	EmbeddingModel() string
}

// EmbeddingModelOf returns the embedding model of p, or its name when p does
// not report one.
func EmbeddingModelOf(p Provider) string {
	if m, ok := p.(EmbeddingModeler); ok {
		if model := m.EmbeddingModel(); model != "" {
			return model
		}
	}
	return p.Name()
}

// ModelEmbedder is implemented by providers whose embedding model can
// change from call to call, e.g. when a failing endpoint degrades to the
// hash embedding.
type ModelEmbedder interface {
	EmbedWithModel(ctx context.Context, text string) ([]float32, string, error)
}

// Embed embeds text with p and names the model that produced the vector.
func Embed(ctx context.Context, p Provider, text string) ([]float32, string, error) {
	if m, ok := p.(ModelEmbedder); ok {
		return m.EmbedWithModel(ctx, text)
	}
	v, err := p.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, "", err
	}
	return v, EmbeddingModelOf(p), nil
}

// ProviderStatus indicates provider health.
type ProviderStatus struct {
	Available      bool           `json:"available"`
	Provider       string         `json:"provider"`
	Message        string         `json:"message"`
	Model          string         `json:"model,omitempty"`
	EmbeddingModel string         `json:"embedding_model,omitempty"`
	Degraded       bool           `json:"degraded"`
	Health         *HealthMetrics `json:"health,omitempty"`
}

// ProviderConfig is the variant-agnostic configuration handed to a Factory.
type ProviderConfig struct {
	APIKey string
	// BaseURL overrides the variant's API endpoint. For the local variant it
	// names an optional OpenAI-compatible on-device model server.
	BaseURL        string
	Model          string
	EmbeddingModel string
	Logger         *slog.Logger
}

// LoggerOrDefault returns cfg.Logger or slog.Default().
func (cfg ProviderConfig) LoggerOrDefault() *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return slog.Default()
}
