// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package openai implements provider.Provider on the OpenAI API and on any
// server that speaks its wire format.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const (
	DefaultModel          = string(openaisdk.ChatModelGPT4oMini)
	DefaultEmbeddingModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)
)

// Config holds OpenAI provider configuration.
type Config struct {
	// Name reported by the provider; defaults to "openai".
	Name           string
	APIKey         string
	BaseURL        string // optional, useful for testing against a mock server
	Model          string
	EmbeddingModel string
	Logger         *slog.Logger
	// Retry overrides provider.DefaultRetryPolicy.
	Retry *provider.RetryPolicy
}

// Provider implements provider.Provider using the Chat Completions and
// Embeddings APIs.
type Provider struct {
	client openaisdk.Client
	config Config
	health *provider.HealthTracker
	logger *slog.Logger
	retry  provider.RetryPolicy
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI provider. Returns a not_configured error if the
// API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, sqerr.New(sqerr.CodeProviderConfigNotConfigured,
			cfg.Name+": missing api key", sqerr.FieldProvider(cfg.Name))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// provider.Retry owns retries.
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
		client: openaisdk.NewClient(opts...),
		config: cfg,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
		logger: logger.With(slog.String("provider", cfg.Name)),
		retry:  retry,
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

func (p *Provider) Name() string { return p.config.Name }

// Initialize has nothing to prepare; the client is built by New.
func (p *Provider) Initialize(_ context.Context) error { return nil }

func (p *Provider) Available(_ context.Context) bool {
	return p.health.IsHealthy()
}

func (p *Provider) EmbeddingModel() string { return p.config.EmbeddingModel }

// Model returns the chat model in use.
func (p *Provider) Model() string { return p.config.Model }

// Ping lists models to confirm the endpoint answers.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	p.health.Observe(err)
	if err != nil {
		return p.upstream(err, "listing models")
	}
	return nil
}

func (p *Provider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input:          openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:          openaisdk.EmbeddingModel(p.config.EmbeddingModel),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	}

	res, err := provider.Retry(ctx, p.retry, func(ctx context.Context) (*openaisdk.CreateEmbeddingResponse, error) {
		return p.client.Embeddings.New(ctx, params)
	})
	p.health.Observe(err)
	if err != nil {
		return nil, p.upstream(err, "generating embedding")
	}
	if len(res.Data) == 0 || len(res.Data[0].Embedding) == 0 {
		return nil, sqerr.New(sqerr.CodeProviderUpstreamFailure, p.config.Name+": empty embedding response",
			sqerr.FieldProvider(p.config.Name))
	}

	out := make([]float32, len(res.Data[0].Embedding))
	for i, v := range res.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt, contextText string) (string, error) {
	var msgs []openaisdk.ChatCompletionMessageParamUnion
	if system := provider.ContextSystemPrompt(contextText); system != "" {
		msgs = append(msgs, openaisdk.SystemMessage(system))
	}
	msgs = append(msgs, openaisdk.UserMessage(prompt))

	return p.chat(ctx, "generating completion", p.params(msgs, 0.7, 500))
}

func (p *Provider) GenerateTags(ctx context.Context, content string) ([]string, error) {
	raw, err := p.chat(ctx, "generating tags", p.params([]openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(provider.TagInstruction),
		openaisdk.UserMessage(provider.Truncate(content, provider.RemoteTagInputChars)),
	}, 0.3, 30))
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
	answer, err := p.chat(ctx, "answering question", p.params([]openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.SystemMessage(provider.AnswerInstruction),
		openaisdk.UserMessage(provider.AnswerPrompt(question, contextText)),
	}, 0.7, 500))
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
		Provider:       p.config.Name,
		Message:        msg,
		Model:          p.config.Model,
		EmbeddingModel: p.config.EmbeddingModel,
		Degraded:       p.health.Degraded(),
		Health:         p.health.HealthMetricsPtr(),
	}, nil
}

func (p *Provider) Close() error { return nil }

func (p *Provider) params(msgs []openaisdk.ChatCompletionMessageParamUnion, temperature float64, maxTokens int64) openaisdk.ChatCompletionNewParams {
	return openaisdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.config.Model),
		Messages:    msgs,
		Temperature: openaisdk.Float(temperature),
		MaxTokens:   openaisdk.Int(maxTokens),
	}
}

func (p *Provider) chat(ctx context.Context, op string, params openaisdk.ChatCompletionNewParams) (string, error) {
	res, err := provider.Retry(ctx, p.retry, func(ctx context.Context) (*openaisdk.ChatCompletion, error) {
		return p.client.Chat.Completions.New(ctx, params)
	})
	p.health.Observe(err)
	if err != nil {
		return "", p.upstream(err, op)
	}
	if len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}

func (p *Provider) upstream(err error, op string) error {
	p.logger.Warn("upstream call failed", slog.String("operation", op), slog.Any("error", err))
	return sqerr.Wrapf(err, sqerr.CodeProviderUpstreamFailure, "%s: %s", p.config.Name, op)
}

// retryable retries rate limits, timeouts, server errors and transport
// failures; other API errors are permanent.
func retryable(err error) bool {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return provider.RetryableStatus(apiErr.StatusCode)
	}
	return true
}
