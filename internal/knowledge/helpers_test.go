// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	"github.com/squirrel-notes/squirrel/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

var captureTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fixedSources struct {
	p  provider.Provider
	st store.NoteStore
}

func (f fixedSources) Provider(context.Context) (provider.Provider, error) { return f.p, nil }
func (f fixedSources) Store(context.Context) (store.NoteStore, error)      { return f.st, nil }

// stubProvider embeds with the hash embedding and records what it was asked.
type stubProvider struct {
	mu          sync.Mutex
	embedInputs []string
	tagInputs   []string
	tags        []string
	tagErr      error
	answer      string
	answerErr   error
	question    string
	contextText string
}

func (s *stubProvider) Name() string                     { return "stub" }
func (s *stubProvider) Initialize(context.Context) error { return nil }
func (s *stubProvider) Available(context.Context) bool   { return true }
func (s *stubProvider) Close() error                     { return nil }
func (s *stubProvider) EmbeddingModel() string           { return "stub-embed" }

func (s *stubProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.embedInputs = append(s.embedInputs, text)
	s.mu.Unlock()
	return provider.HashEmbedding(text), nil
}

func (s *stubProvider) GenerateTags(_ context.Context, content string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tagInputs = append(s.tagInputs, content)
	if s.tagErr != nil {
		return nil, s.tagErr
	}
	return append([]string(nil), s.tags...), nil
}

func (s *stubProvider) GenerateCompletion(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *stubProvider) AnswerQuestion(_ context.Context, question, contextText string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.question, s.contextText = question, contextText
	return s.answer, s.answerErr
}

func (s *stubProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: "stub"}, nil
}

func (s *stubProvider) embedded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.embedInputs...)
}

func (s *stubProvider) lastContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextText
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Initialize(context.Background()))

	clock := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	st.SetNowFunc(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	return st
}

func newService(p provider.Provider, st store.NoteStore) *knowledge.Service {
	return knowledge.New(fixedSources{p: p, st: st}, fixedSources{p: p, st: st}, knowledge.Options{
		Now: func() time.Time { return captureTime },
	})
}
