// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package selection_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/builtin"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	"github.com/squirrel-notes/squirrel/internal/selection"
	"github.com/squirrel-notes/squirrel/internal/store"
	_ "github.com/squirrel-notes/squirrel/internal/store/postgres"
	_ "github.com/squirrel-notes/squirrel/internal/store/sqlite"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type staticConfig struct {
	cfg *config.Config
}

func (s *staticConfig) Raw() (*config.Config, error) {
	c := *s.cfg
	return &c, nil
}

func (s *staticConfig) ResolveSecret(value string) (string, error) {
	return value, nil
}

func baseConfig(t *testing.T) *config.Config {
	return &config.Config{
		Storage:   config.StorageConfig{Backend: "sqlite", DataDir: t.TempDir()},
		AI:        config.AIConfig{Provider: "local"},
		Providers: map[string]config.ProviderConfig{},
		QA:        config.QAConfig{TopK: 5, TopicLimit: 10, MaxContextChars: 4000},
		Server:    config.ServerConfig{Listen: "127.0.0.1:7878"},
	}
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// fakeProvider is a minimal provider whose lifecycle calls are observable.
type fakeProvider struct {
	name    string
	initErr error
	closed  atomic.Bool
}

func (f *fakeProvider) Name() string                                           { return f.name }
func (f *fakeProvider) Initialize(context.Context) error                       { return f.initErr }
func (f *fakeProvider) Available(context.Context) bool                         { return true }
func (f *fakeProvider) Close() error                                           { f.closed.Store(true); return nil }
func (f *fakeProvider) GenerateTags(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeProvider) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}
func (f *fakeProvider) GenerateCompletion(context.Context, string, string) (string, error) {
	return "", nil
}
func (f *fakeProvider) AnswerQuestion(context.Context, string, string) (string, error) {
	return "", nil
}
func (f *fakeProvider) Status(context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: true, Provider: f.name}, nil
}

type countingRegistry struct {
	*provider.Registry
	mu      sync.Mutex
	calls   map[types.AIProvider]int
	created []*fakeProvider
}

func newCountingRegistry(initErrs map[types.AIProvider]error) *countingRegistry {
	cr := &countingRegistry{Registry: provider.NewRegistry(), calls: map[types.AIProvider]int{}}
	for _, name := range []types.AIProvider{types.ProviderLocal, types.ProviderOpenAI, types.ProviderGoogle} {
		cr.Register(name, func(cfg provider.ProviderConfig) (provider.Provider, error) {
			if name != types.ProviderLocal && cfg.APIKey == "" {
				return nil, sqerr.New(sqerr.CodeProviderConfigNotConfigured, "missing api key")
			}
			p := &fakeProvider{name: string(name), initErr: initErrs[name]}
			cr.mu.Lock()
			cr.calls[name]++
			cr.created = append(cr.created, p)
			cr.mu.Unlock()
			return p, nil
		})
	}
	return cr
}

func (cr *countingRegistry) count(name types.AIProvider) int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.calls[name]
}

func TestProviderAttempts(t *testing.T) {
	assert.Equal(t, []types.AIProvider{"openai", "local"}, selection.ProviderAttempts(types.ProviderOpenAI))
	assert.Equal(t, []types.AIProvider{"local"}, selection.ProviderAttempts(types.ProviderLocal))
}

func TestStoreAttempts(t *testing.T) {
	assert.Equal(t, []types.StorageBackend{"postgres", "sqlite"}, selection.StoreAttempts(types.StoragePostgres))
	assert.Equal(t, []types.StorageBackend{"sqlite"}, selection.StoreAttempts(types.StorageSQLite))
}

func TestSelector_ProviderFallsBackWithoutCredentials(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AI.Provider = "openai"
	logger, buf := bufferLogger()

	sel := selection.New(&staticConfig{cfg}, builtin.Registry(), selection.WithLogger(logger))
	t.Cleanup(func() { _ = sel.Close() })

	p, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "not configured")

	state := sel.State()
	assert.Equal(t, types.ProviderOpenAI, state.ConfiguredProvider)
	assert.Equal(t, types.ProviderLocal, state.ActiveProvider)
}

func TestSelector_ProviderUsesConfiguredVariant(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AI.Provider = "gemini"
	cfg.Providers["google"] = config.ProviderConfig{APIKey: "g-key"}
	reg := newCountingRegistry(nil)

	sel := selection.New(&staticConfig{cfg}, reg.Registry)

	p, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, 0, reg.count(types.ProviderLocal))
}

func TestSelector_ProviderInitFailureFallsBack(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AI.Provider = "openai"
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk"}
	reg := newCountingRegistry(map[types.AIProvider]error{
		types.ProviderOpenAI: errors.New("connection refused"),
	})
	logger, buf := bufferLogger()

	sel := selection.New(&staticConfig{cfg}, reg.Registry, selection.WithLogger(logger))

	p, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name())
	assert.Contains(t, buf.String(), "unusable")

	require.Len(t, reg.created, 2)
	assert.True(t, reg.created[0].closed.Load(), "failed attempt must be closed")
}

func TestSelector_LocalFailurePropagates(t *testing.T) {
	reg := newCountingRegistry(map[types.AIProvider]error{
		types.ProviderLocal: sqerr.New(sqerr.CodeProviderCapabilityUnavailable, "broken"),
	})
	sel := selection.New(&staticConfig{baseConfig(t)}, reg.Registry)

	_, err := sel.Provider(context.Background())
	require.Error(t, err)
	assert.True(t, sqerr.IsUnavailable(err))
}

func TestSelector_ProviderMemoizedAcrossConcurrentCalls(t *testing.T) {
	reg := newCountingRegistry(nil)
	sel := selection.New(&staticConfig{baseConfig(t)}, reg.Registry)

	var wg sync.WaitGroup
	results := make([]provider.Provider, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := sel.Provider(context.Background())
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.count(types.ProviderLocal))
	for _, p := range results {
		assert.Same(t, results[0], p)
	}
}

func TestSelector_InvalidateResolvesAgain(t *testing.T) {
	reg := newCountingRegistry(nil)
	cfg := baseConfig(t)
	src := &staticConfig{cfg}
	sel := selection.New(src, reg.Registry)

	first, err := sel.Provider(context.Background())
	require.NoError(t, err)

	cfg.AI.Provider = "openai"
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk"}
	sel.Invalidate()

	second, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai", second.Name())
	assert.NotSame(t, first, second)
	assert.False(t, reg.created[0].closed.Load(), "invalidated instances stay usable")
}

// blockingConfig lets a test invalidate while a resolution is in flight.
type blockingConfig struct {
	cfg     *config.Config
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingConfig) ResolveSecret(value string) (string, error) {
	return value, nil
}

func (b *blockingConfig) Raw() (*config.Config, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	c := *b.cfg
	return &c, nil
}

func TestSelector_InvalidateDuringResolutionIsNotCached(t *testing.T) {
	reg := newCountingRegistry(nil)
	src := &blockingConfig{cfg: baseConfig(t), entered: make(chan struct{}), release: make(chan struct{})}
	sel := selection.New(src, reg.Registry)

	done := make(chan provider.Provider)
	go func() {
		p, err := sel.Provider(context.Background())
		assert.NoError(t, err)
		done <- p
	}()

	<-src.entered
	sel.Invalidate()
	close(src.release)
	stale := <-done
	require.NotNil(t, stale)

	fresh, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	assert.Equal(t, 2, reg.count(types.ProviderLocal))
}

func TestSelector_StoreFallsBackWithoutDSN(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Storage.Backend = "remote"
	logger, buf := bufferLogger()

	sel := selection.New(&staticConfig{cfg}, builtin.Registry(), selection.WithLogger(logger))
	t.Cleanup(func() { _ = sel.Close() })

	st, err := sel.Store(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Contains(t, buf.String(), "storage backend not configured")

	state := sel.State()
	assert.Equal(t, types.StoragePostgres, state.ConfiguredStore)
	assert.Equal(t, types.StorageSQLite, state.ActiveStore)

	again, err := sel.Store(context.Background())
	require.NoError(t, err)
	assert.Same(t, st, again)
}

func TestSelector_StoreInitFailurePropagates(t *testing.T) {
	var built atomic.Int32
	factory := func(cfg store.StorageConfig) (store.NoteStore, error) {
		built.Add(1)
		return nil, sqerr.New(sqerr.CodeStoreBackendUnavailable, "disk on fire")
	}
	sel := selection.New(&staticConfig{baseConfig(t)}, builtin.Registry(), selection.WithStoreFactory(factory))

	_, err := sel.Store(context.Background())
	require.Error(t, err)
	assert.True(t, sqerr.IsUnavailable(err))
	assert.Equal(t, int32(1), built.Load())
}

func TestSelector_CloseClosesCurrent(t *testing.T) {
	reg := newCountingRegistry(nil)
	sel := selection.New(&staticConfig{baseConfig(t)}, reg.Registry)

	_, err := sel.Provider(context.Background())
	require.NoError(t, err)
	require.NoError(t, sel.Close())

	assert.True(t, reg.created[0].closed.Load())
	assert.Empty(t, sel.State().ActiveProvider)
}

// keyringManager loads yaml into a Manager that resolves references against
// an in-memory keyring.
func keyringManager(t *testing.T, yaml string) *config.Manager {
	t.Helper()
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "squirrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	m, err := config.NewManager(path, config.WithSecretResolver(secrets.NewResolver(secrets.NewKeyringStore())))
	require.NoError(t, err)
	return m
}

func TestSelector_DanglingKeyringReference(t *testing.T) {
	tests := []struct {
		name         string
		provider     string
		backend      string
		wantProvider types.AIProvider
		wantStore    types.StorageBackend
		wantWarn     bool
	}{
		{name: "configured provider falls back", provider: "openai", backend: "sqlite",
			wantProvider: types.ProviderLocal, wantStore: types.StorageSQLite, wantWarn: true},
		{name: "unrelated provider is not resolved", provider: "local", backend: "sqlite",
			wantProvider: types.ProviderLocal, wantStore: types.StorageSQLite},
		{name: "postgres dsn falls back", provider: "local", backend: "postgres",
			wantProvider: types.ProviderLocal, wantStore: types.StorageSQLite, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "storage:\n  backend: " + tt.backend + "\n  data_dir: " + t.TempDir() + "\n" +
				"  postgres:\n    dsn: keyring://squirrel/postgres-dsn\n" +
				"ai:\n  provider: " + tt.provider + "\n" +
				"providers:\n  openai:\n    api_key: keyring://squirrel/openai-api-key\n"
			logger, buf := bufferLogger()
			sel := selection.New(keyringManager(t, yaml), builtin.Registry(), selection.WithLogger(logger))
			t.Cleanup(func() { _ = sel.Close() })

			p, err := sel.Provider(context.Background())
			require.NoError(t, err)
			st, err := sel.Store(context.Background())
			require.NoError(t, err)
			require.NotNil(t, st)

			assert.Equal(t, string(tt.wantProvider), p.Name())
			state := sel.State()
			assert.Equal(t, tt.wantProvider, state.ActiveProvider)
			assert.Equal(t, tt.wantStore, state.ActiveStore)
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "credential unavailable")
			} else {
				assert.NotContains(t, buf.String(), "credential unavailable")
			}
		})
	}
}

func TestSelector_ResolvedKeyringReferenceUsed(t *testing.T) {
	m := keyringManager(t, "ai:\n  provider: google\nproviders:\n  google:\n    api_key: keyring://squirrel/google-api-key\n")
	require.NoError(t, secrets.NewKeyringStore().Store(secrets.Service, "google-api-key", "g-key"))

	var gotKey string
	reg := provider.NewRegistry()
	reg.Register(types.ProviderGoogle, func(cfg provider.ProviderConfig) (provider.Provider, error) {
		gotKey = cfg.APIKey
		return &fakeProvider{name: "google"}, nil
	})
	sel := selection.New(m, reg)

	p, err := sel.Provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "g-key", gotKey)
}

func TestSelector_InvalidateClosesReplacedAfterDelay(t *testing.T) {
	reg := newCountingRegistry(nil)
	sel := selection.New(&staticConfig{baseConfig(t)}, reg.Registry, selection.WithRetireDelay(10*time.Millisecond))
	t.Cleanup(func() { _ = sel.Close() })

	_, err := sel.Provider(context.Background())
	require.NoError(t, err)
	sel.Invalidate()

	assert.Eventually(t, func() bool { return reg.created[0].closed.Load() }, time.Second, 5*time.Millisecond)
}

func TestSelector_CloseClosesRetired(t *testing.T) {
	reg := newCountingRegistry(nil)
	sel := selection.New(&staticConfig{baseConfig(t)}, reg.Registry, selection.WithRetireDelay(time.Hour))

	_, err := sel.Provider(context.Background())
	require.NoError(t, err)
	sel.Invalidate()
	assert.False(t, reg.created[0].closed.Load())

	require.NoError(t, sel.Close())
	assert.True(t, reg.created[0].closed.Load())
}
