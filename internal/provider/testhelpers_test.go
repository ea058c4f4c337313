// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider_test

import (
	"context"
	"sync/atomic"

	"github.com/squirrel-notes/squirrel/internal/provider"
)

// stubProvider is a minimal provider.Provider for package tests. It embeds
// by counting GenerateEmbedding calls and returning a fixed vector.
type stubProvider struct {
	name       string
	model      string
	embedCalls atomic.Int32
	embedErr   error
}

var _ provider.Provider = (*stubProvider)(nil)

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name}
}

func (s *stubProvider) Name() string                     { return s.name }
func (s *stubProvider) Initialize(context.Context) error { return nil }
func (s *stubProvider) Available(context.Context) bool   { return true }
func (s *stubProvider) Close() error                     { return nil }
func (s *stubProvider) EmbeddingModel() string           { return s.model }

func (s *stubProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	s.embedCalls.Add(1)
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubProvider) GenerateCompletion(_ context.Context, prompt, _ string) (string, error) {
	return prompt, nil
}

func (s *stubProvider) GenerateTags(_ context.Context, _ string) ([]string, error) {
	return []string{"stub"}, nil
}

func (s *stubProvider) AnswerQuestion(_ context.Context, question, _ string) (string, error) {
	return "answer: " + question, nil
}

func (s *stubProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: s.name, Message: "ok"}, nil
}
