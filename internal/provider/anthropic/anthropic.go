// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package anthropic implements provider.Provider on the Anthropic Messages
// API. Anthropic offers no embedding endpoint, so embeddings always come from
// provider.HashEmbedding and are reported as degraded.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const (
	Name         = "anthropic"
	DefaultModel = string(anthropicsdk.ModelClaudeHaiku4_5)
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	Model   string
	Logger  *slog.Logger
	Retry   *provider.RetryPolicy
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	config Config
	health *provider.HealthTracker
	logger *slog.Logger
	retry  provider.RetryPolicy
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Anthropic provider. Returns a not_configured error if the
// API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, sqerr.New(sqerr.CodeProviderConfigNotConfigured, "anthropic: missing api key", sqerr.FieldProvider(Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retry := provider.PolicyOrDefault(cfg.Retry)
	retry.Retryable = retryable

	return &Provider{
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
		logger: logger.With(slog.String("provider", Name)),
		retry:  retry,
	}, nil
}

// NewFromConfig adapts the registry configuration. EmbeddingModel is ignored.
func NewFromConfig(cfg provider.ProviderConfig) (provider.Provider, error) {
	return New(Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Logger:  cfg.Logger,
	})
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Initialize(_ context.Context) error { return nil }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) EmbeddingModel() string { return provider.HashEmbeddingModel }

// GenerateEmbedding always uses the local heuristic.
func (p *Provider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	p.health.RecordDegraded(ctx, p.logger, "generate_embedding", nil)
	return provider.HashEmbedding(text), nil
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt, contextText string) (string, error) {
	return p.message(ctx, "generating completion", provider.ContextSystemPrompt(contextText), prompt, 0.7, 500)
}

func (p *Provider) GenerateTags(ctx context.Context, content string) ([]string, error) {
	raw, err := p.message(ctx, "generating tags", provider.TagInstruction,
		provider.Truncate(content, provider.RemoteTagInputChars), 0.3, 30)
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
	answer, err := p.message(ctx, "answering question", provider.AnswerInstruction,
		provider.AnswerPrompt(question, contextText), 0.7, 500)
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
	msg := "ready; embeddings use the local heuristic"
	if !available {
		msg = "cooling down after upstream failure"
	}
	return provider.ProviderStatus{
		Available:      available,
		Provider:       Name,
		Message:        msg,
		Model:          p.config.Model,
		EmbeddingModel: provider.HashEmbeddingModel,
		Degraded:       true,
		Health:         p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

func (p *Provider) message(ctx context.Context, op, system, user string, temperature float64, maxTokens int64) (string, error) {
	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(p.config.Model),
		MaxTokens:   maxTokens,
		Messages:    []anthropicsdk.MessageParam{anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(user))},
		Temperature: anthropicsdk.Float(temperature),
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	res, err := provider.Retry(ctx, p.retry, func(ctx context.Context) (*anthropicsdk.Message, error) {
		return p.client.Messages.New(ctx, params)
	})
	p.health.Observe(err)
	if err != nil {
		p.logger.Warn("upstream call failed", slog.String("operation", op), slog.Any("error", err))
		return "", sqerr.Wrapf(err, sqerr.CodeProviderUpstreamFailure, "anthropic: %s", op)
	}

	var b strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func retryable(err error) bool {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return provider.RetryableStatus(apiErr.StatusCode)
	}
	return true
}
