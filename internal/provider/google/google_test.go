// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/google"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGemini answers generateContent and embedding calls.
type fakeGemini struct {
	mu     sync.Mutex
	reply  string
	status int
	paths  []string
	bodies []string
}

func (f *fakeGemini) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	raw, _ := json.Marshal(body)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, string(raw))
	status := f.status
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`))
		return
	}

	switch {
	case strings.Contains(r.URL.Path, "mbedContent"):
		values := []float32{0.1, 0.2, 0.3}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding":  map[string]any{"values": values},
			"embeddings": []any{map[string]any{"values": values}},
		})
	case strings.Contains(r.URL.Path, ":generateContent"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": f.reply}}},
				"finishReason": "STOP",
			}},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGemini) snapshot() (paths, bodies []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]string(nil), f.bodies...)
}

func (f *fakeGemini) fail(status int) {
	f.mu.Lock()
	f.status = status
	f.mu.Unlock()
}

func newProvider(t *testing.T, reply string) (*google.Provider, *fakeGemini) {
	t.Helper()
	f := &fakeGemini{reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	noRetry := provider.NoRetry()
	p, err := google.New(google.Config{APIKey: "g-key", BaseURL: srv.URL + "/", Retry: &noRetry})
	require.NoError(t, err)
	require.NoError(t, p.Initialize(context.Background()))
	return p, f
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := google.New(google.Config{})
	require.Error(t, err)
	assert.True(t, sqerr.IsNotConfigured(err))

	_, err = google.NewFromConfig(provider.ProviderConfig{})
	assert.True(t, sqerr.IsNotConfigured(err))
}

func TestDefaults(t *testing.T) {
	p, _ := newProvider(t, "")
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "gemini-embedding-001", p.EmbeddingModel())

	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", st.Model)
	assert.True(t, st.Available)
}

func TestGenerateEmbedding(t *testing.T) {
	p, f := newProvider(t, "")
	v, err := p.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
	paths, _ := f.snapshot()
	assert.Contains(t, paths[0], "gemini-embedding-001")
}

func TestGenerateCompletion_PrefixesContext(t *testing.T) {
	p, f := newProvider(t, "done")
	out, err := p.GenerateCompletion(context.Background(), "summarize", "three notes")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	paths, bodies := f.snapshot()
	assert.Contains(t, paths[0], "gemini-2.5-flash:generateContent")
	assert.Contains(t, bodies[0], `Context: three notes\n\nsummarize`)
}

func TestGenerateTags(t *testing.T) {
	p, f := newProvider(t, "keywords: Machine Learning, PyTorch, a")
	got, err := p.GenerateTags(context.Background(), "notes on training loops")
	require.NoError(t, err)
	assert.Equal(t, []string{"machine-learning", "pytorch"}, got)
	_, bodies := f.snapshot()
	assert.Contains(t, bodies[0], "Output ONLY comma-separated words")
}

func TestGenerateTags_HeuristicFallback(t *testing.T) {
	p, _ := newProvider(t, "")
	got, err := p.GenerateTags(context.Background(), "sourdough starter feeding schedule sourdough")
	require.NoError(t, err)
	assert.Equal(t, "sourdough", got[0])

	st, _ := p.Status(context.Background())
	assert.True(t, st.Degraded)
}

func TestAnswerQuestion(t *testing.T) {
	p, f := newProvider(t, "\nYou have two notes about Rust.\n")
	out, err := p.AnswerQuestion(context.Background(), "what about rust?", "1. Note about: rust")
	require.NoError(t, err)
	assert.Equal(t, "You have two notes about Rust.", out)
	_, bodies := f.snapshot()
	assert.Contains(t, bodies[0], "systemInstruction")
	assert.Contains(t, bodies[0], "User Question: what about rust?")
}

func TestAnswerQuestion_EmptyReply(t *testing.T) {
	p, _ := newProvider(t, "")
	out, err := p.AnswerQuestion(context.Background(), "q", "c")
	require.NoError(t, err)
	assert.Equal(t, provider.NoResponse, out)
}

func TestUpstreamFailure(t *testing.T) {
	p, f := newProvider(t, "")
	f.fail(http.StatusBadRequest)

	_, err := p.GenerateCompletion(context.Background(), "x", "")
	require.Error(t, err)
	assert.True(t, sqerr.IsUpstreamFailure(err))
	assert.False(t, p.Available(context.Background()))
}
