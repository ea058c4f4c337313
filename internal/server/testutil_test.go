// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/selection"
	"github.com/squirrel-notes/squirrel/internal/server"
	"github.com/squirrel-notes/squirrel/internal/store"
	"github.com/squirrel-notes/squirrel/internal/store/sqlite"
	"github.com/squirrel-notes/squirrel/pkg/types"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers with a fixed text and tags every note "testing".
type fakeProvider struct {
	answer    string
	answerErr error
}

func (f *fakeProvider) Name() string                     { return "fake" }
func (f *fakeProvider) Initialize(context.Context) error { return nil }
func (f *fakeProvider) Available(context.Context) bool   { return true }
func (f *fakeProvider) Close() error                     { return nil }

func (f *fakeProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	return provider.HashEmbedding(text), nil
}

func (f *fakeProvider) GenerateTags(context.Context, string) ([]string, error) {
	return []string{"testing"}, nil
}

func (f *fakeProvider) GenerateCompletion(context.Context, string, string) (string, error) {
	return f.answer, f.answerErr
}

func (f *fakeProvider) AnswerQuestion(context.Context, string, string) (string, error) {
	return f.answer, f.answerErr
}

func (f *fakeProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: "fake", Message: "ready"}, nil
}

type fixedBackends struct {
	p  provider.Provider
	st store.NoteStore
}

func (f fixedBackends) Provider(context.Context) (provider.Provider, error) { return f.p, nil }
func (f fixedBackends) Store(context.Context) (store.NoteStore, error)      { return f.st, nil }

type staticSelection struct{}

func (staticSelection) State() selection.State {
	return selection.State{
		ConfiguredProvider: types.ProviderOpenAI,
		ActiveProvider:     types.ProviderLocal,
		ConfiguredStore:    types.StorageSQLite,
		ActiveStore:        types.StorageSQLite,
	}
}

func newNoteService(t *testing.T, p provider.Provider) *knowledge.Service {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), sqlite.DBFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Initialize(context.Background()))

	b := fixedBackends{p: p, st: st}
	return knowledge.New(b, b, knowledge.Options{})
}

func newTestServer(t *testing.T, cfg server.Config, svc *server.Services) *server.Server {
	t.Helper()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:0"
	}
	srv, err := server.New(cfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	srv.RegisterServices(svc)
	return srv
}

// newNotesServer serves a real knowledge service over sqlite.
func newNotesServer(t *testing.T, p *fakeProvider) *server.Server {
	t.Helper()
	svc, err := server.NewServices(newNoteService(t, p), staticSelection{})
	require.NoError(t, err)
	return newTestServer(t, server.Config{}, svc)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
