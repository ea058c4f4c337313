// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package google implements provider.Provider on the Gemini API.
package google

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const (
	Name                  = "google"
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	Model          string
	EmbeddingModel string
	Logger         *slog.Logger
	Retry          *provider.RetryPolicy
}

// Provider implements provider.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
	config Config
	health *provider.HealthTracker
	logger *slog.Logger
	retry  provider.RetryPolicy
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Google provider. Returns a not_configured error if the
// API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sqerr.New(sqerr.CodeProviderConfigNotConfigured, "google: missing api key", sqerr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeProviderUpstreamFailure, "google: creating client")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		client: client,
		config: cfg,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
		logger: logger.With(slog.String("provider", Name)),
		retry:  provider.PolicyOrDefault(cfg.Retry),
	}, nil
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

func (p *Provider) Name() string { return Name }

func (p *Provider) Initialize(_ context.Context) error { return nil }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) EmbeddingModel() string { return p.config.EmbeddingModel }

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := provider.Retry(ctx, p.retry, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return p.client.Models.EmbedContent(ctx, p.config.EmbeddingModel, genai.Text(text), nil)
	})
	p.health.Observe(err)
	if err != nil {
		return nil, p.upstream(err, "generating embedding")
	}
	if len(res.Embeddings) == 0 || res.Embeddings[0] == nil || len(res.Embeddings[0].Values) == 0 {
		return nil, sqerr.New(sqerr.CodeProviderUpstreamFailure, "google: empty embedding response", sqerr.FieldProvider(Name))
	}
	return res.Embeddings[0].Values, nil
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt, contextText string) (string, error) {
	return p.generate(ctx, "generating completion", provider.CompletionPrompt(prompt, contextText), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
}

func (p *Provider) GenerateTags(ctx context.Context, content string) ([]string, error) {
	raw, err := p.generate(ctx, "generating tags", provider.TagPrompt(content, provider.RemoteTagInputChars), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	})
	if err != nil {
		return nil, err
	}

	out, degraded := tags.FromModelOutput(raw, content)
	if degraded {
		p.health.RecordDegraded(ctx, p.logger, "generate_tags", nil)
	}
	return out, nil
}

func (p *Provider) AnswerQuestion(ctx context.Context, question, contextText string) (string, error) {
	answer, err := p.generate(ctx, "answering question", provider.AnswerPrompt(question, contextText), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0.7),
		SystemInstruction: genai.NewContentFromText(provider.AnswerInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", err
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return provider.NoResponse, nil
	}
	return answer, nil
}

func (p *Provider) Status(_ context.Context) (provider.ProviderStatus, error) {
	available := p.health.IsHealthy()
	msg := "ready"
	if !available {
		msg = "cooling down after upstream failure"
	}
	return provider.ProviderStatus{
		Available:      available,
		Provider:       Name,
		Message:        msg,
		Model:          p.config.Model,
		EmbeddingModel: p.config.EmbeddingModel,
		Degraded:       p.health.Degraded(),
		Health:         p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

func (p *Provider) generate(ctx context.Context, op, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	res, err := provider.Retry(ctx, p.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return p.client.Models.GenerateContent(ctx, p.config.Model, genai.Text(prompt), cfg)
	})
	p.health.Observe(err)
	if err != nil {
		return "", p.upstream(err, op)
	}
	return responseText(res), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (p *Provider) upstream(err error, op string) error {
	p.logger.Warn("upstream call failed", slog.String("operation", op), slog.Any("error", err))
	return sqerr.Wrapf(err, sqerr.CodeProviderUpstreamFailure, "google: %s", op)
}
