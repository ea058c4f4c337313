// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package local implements the on-device provider. Without a model endpoint
// it embeds with provider.HashEmbedding and tags with word frequency. With an
// OpenAI-compatible endpoint on the local machine (Ollama, llama.cpp server)
// it also completes and answers.
package local

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/openai"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const (
	Name         = "local"
	DefaultModel = "llama3.2"
	// endpointKey is sent to endpoints that ignore authentication.
	endpointKey = "local"
)

// Config holds local provider configuration.
type Config struct {
	// Endpoint is the optional OpenAI-compatible API root, e.g.
	// http://localhost:11434/v1.
	Endpoint string
	APIKey   string
	Model    string
	// EmbeddingModel switches embeddings to the endpoint. Empty keeps the
	// hash embedding so stored vectors stay comparable across restarts.
	EmbeddingModel string
	Logger         *slog.Logger
	Retry          *provider.RetryPolicy
}

// Provider implements provider.Provider on the local machine.
type Provider struct {
	config Config
	model  *openai.Provider // nil without an endpoint
	ready  atomic.Bool      // endpoint answered the Initialize probe
	health *provider.HealthTracker
	logger *slog.Logger
}

var _ provider.Provider = (*Provider)(nil)

// New creates a local provider. It never requires credentials.
func New(cfg Config) (*Provider, error) {
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}

	p := &Provider{
		config: cfg,
		health: provider.MustHealthTracker(provider.DefaultHealthCooldown),
		logger: base.With(slog.String("provider", Name)),
	}

	if cfg.Endpoint != "" {
		if cfg.Model == "" {
			p.config.Model = DefaultModel
		}
		key := cfg.APIKey
		if key == "" {
			key = endpointKey
		}
		model, err := openai.New(openai.Config{
			Name:           Name,
			APIKey:         key,
			BaseURL:        cfg.Endpoint,
			Model:          p.config.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Logger:         base,
			Retry:          cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		p.model = model
	}
	return p, nil
}

// NewFromConfig adapts the registry configuration; BaseURL is the endpoint.
func NewFromConfig(cfg provider.ProviderConfig) (provider.Provider, error) {
	return New(Config{
		Endpoint:       cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		Logger:         cfg.Logger,
	})
}

func (p *Provider) Name() string { return Name }

// Initialize probes the endpoint, if any. An unreachable endpoint is not an
// error: the provider keeps serving heuristics and reports itself degraded.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.model == nil {
		return nil
	}
	if err := p.model.Ping(ctx); err != nil {
		p.ready.Store(false)
		p.health.RecordDegraded(ctx, p.logger, "initialize", err)
		return nil
	}
	p.ready.Store(true)
	p.logger.InfoContext(ctx, "on-device model ready",
		slog.String("endpoint", p.config.Endpoint), slog.String("model", p.config.Model))
	return nil
}

// Available is always true; heuristics need nothing external.
func (p *Provider) Available(_ context.Context) bool { return true }

func (p *Provider) endpointEmbeddings() bool {
	return p.model != nil && p.config.EmbeddingModel != ""
}

func (p *Provider) EmbeddingModel() string {
	if p.endpointEmbeddings() {
		return p.config.EmbeddingModel
	}
	return provider.HashEmbeddingModel
}

// GenerateEmbedding uses the endpoint's embedding model when configured and
// the hash embedding otherwise.
func (p *Provider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v, _, err := p.EmbedWithModel(ctx, text)
	return v, err
}

// EmbedWithModel is GenerateEmbedding naming the model used. A failing
// endpoint degrades to the hash embedding, so callers can stamp the vector
// with HashEmbeddingModel instead of the endpoint's model.
func (p *Provider) EmbedWithModel(ctx context.Context, text string) ([]float32, string, error) {
	if !p.endpointEmbeddings() {
		return provider.HashEmbedding(text), provider.HashEmbeddingModel, nil
	}
	v, err := p.model.GenerateEmbedding(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		p.health.RecordDegraded(ctx, p.logger, "generate_embedding", err)
		return provider.HashEmbedding(text), provider.HashEmbeddingModel, nil
	}
	return v, p.config.EmbeddingModel, nil
}

func (p *Provider) GenerateCompletion(ctx context.Context, prompt, contextText string) (string, error) {
	if !p.ready.Load() {
		return "", p.unavailable("completion")
	}
	out, err := p.model.GenerateCompletion(ctx, provider.CompletionPrompt(prompt, contextText), "")
	if err != nil {
		return "", err
	}
	return out, nil
}

// GenerateTags asks the model when one is ready and falls back to keyword
// frequency when there is none, it fails, or nothing usable survives.
func (p *Provider) GenerateTags(ctx context.Context, content string) ([]string, error) {
	if !p.ready.Load() {
		return tags.Extract(content), nil
	}

	raw, err := p.model.GenerateCompletion(ctx, provider.LocalTagPrompt(content), "")
	if err != nil {
		p.health.RecordDegraded(ctx, p.logger, "generate_tags", err)
		return tags.Extract(content), nil
	}

	out, degraded := tags.FromModelOutput(raw, content)
	if degraded {
		p.health.RecordDegraded(ctx, p.logger, "generate_tags", nil)
	}
	return out, nil
}

func (p *Provider) AnswerQuestion(ctx context.Context, question, contextText string) (string, error) {
	if !p.ready.Load() {
		return "", p.unavailable("question answering")
	}
	out, err := p.model.GenerateCompletion(ctx, provider.LocalAnswerPrompt(question, contextText), "")
	if err != nil {
		return "", err
	}
	if out = strings.TrimSpace(out); out == "" {
		return provider.NoResponse, nil
	}
	return out, nil
}

func (p *Provider) Status(_ context.Context) (provider.ProviderStatus, error) {
	st := provider.ProviderStatus{
		Available:      true,
		Provider:       Name,
		EmbeddingModel: p.EmbeddingModel(),
		Health:         p.health.HealthMetricsPtr(),
	}
	switch {
	case p.model == nil:
		st.Message = "heuristic mode: no on-device model configured"
		st.Degraded = true
	case !p.ready.Load():
		st.Message = "on-device model at " + p.config.Endpoint + " is unreachable; using heuristics"
		st.Model = p.config.Model
		st.Degraded = true
	default:
		st.Message = "on-device model " + p.config.Model + " ready"
		st.Model = p.config.Model
		st.Degraded = p.health.Degraded()
	}
	return st, nil
}

func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

func (p *Provider) unavailable(capability string) error {
	return sqerr.New(sqerr.CodeProviderCapabilityUnavailable,
		"local: "+capability+" needs an on-device model; set providers.local.endpoint or choose a remote provider",
		sqerr.FieldProvider(Name))
}
