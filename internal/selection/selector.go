// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package selection resolves the configured AI provider and note store,
// falling back to the local variants, and memoizes the result until the
// configuration changes.
package selection

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
	"golang.org/x/sync/singleflight"
)

// ConfigSource supplies the configuration with credential references left
// unresolved, and resolves them one at a time.
type ConfigSource interface {
	Raw() (*config.Config, error)
	ResolveSecret(value string) (string, error)
}

// DefaultRetireDelay is how long replaced instances stay open after an
// invalidation before they are closed.
const DefaultRetireDelay = 2 * time.Minute

// StoreFactory builds an uninitialized store. store.New is the default.
type StoreFactory func(cfg store.StorageConfig) (store.NoteStore, error)

// Option configures a Selector.
type Option func(*Selector)

func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

func WithStoreFactory(f StoreFactory) Option {
	return func(s *Selector) { s.newStore = f }
}

// WithRetireDelay sets how long replaced instances are kept open.
func WithRetireDelay(d time.Duration) Option {
	return func(s *Selector) { s.retireDelay = d }
}

// State describes what the selector resolved. A configured value that
// differs from the active one means a fallback happened.
type State struct {
	ConfiguredProvider types.AIProvider     `json:"configured_provider"`
	ActiveProvider     types.AIProvider     `json:"active_provider,omitempty"`
	ConfiguredStore    types.StorageBackend `json:"configured_store"`
	ActiveStore        types.StorageBackend `json:"active_store,omitempty"`
}

// Selector hands out the active provider and store. Instances are cached
// only after Initialize succeeds, so readers never see a half-built one.
// Safe for concurrent use.
type Selector struct {
	cfg         ConfigSource
	registry    *provider.Registry
	newStore    StoreFactory
	logger      *slog.Logger
	retireDelay time.Duration
	group       singleflight.Group

	mu    sync.RWMutex
	gen   uint64
	prov  provider.Provider
	store store.NoteStore
	state State

	retiredMu sync.Mutex
	retiredID uint64
	retired   map[uint64]*retiree
}

// retiree is a replaced instance waiting to be closed.
type retiree struct {
	timer  *time.Timer
	closer io.Closer
}

// New returns a Selector resolving providers through registry.
func New(cfg ConfigSource, registry *provider.Registry, opts ...Option) *Selector {
	s := &Selector{
		cfg:         cfg,
		registry:    registry,
		newStore:    store.New,
		retireDelay: DefaultRetireDelay,
		retired:     map[uint64]*retiree{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ProviderAttempts is the order in which providers are tried.
func ProviderAttempts(configured types.AIProvider) []types.AIProvider {
	return dedupe([]types.AIProvider{configured, types.ProviderLocal})
}

// StoreAttempts is the order in which storage backends are tried.
func StoreAttempts(configured types.StorageBackend) []types.StorageBackend {
	return dedupe([]types.StorageBackend{configured, types.StorageSQLite})
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Provider returns the active provider, resolving it on first use.
func (s *Selector) Provider(ctx context.Context) (provider.Provider, error) {
	s.mu.RLock()
	p := s.prov
	s.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	// The shared resolution must not be cancelled by whichever caller started it.
	v, err, _ := s.group.Do("provider", func() (any, error) {
		return s.resolveProvider(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(provider.Provider), nil
}

func (s *Selector) resolveProvider(ctx context.Context) (provider.Provider, error) {
	s.mu.RLock()
	gen, cached := s.gen, s.prov
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	cfg, err := s.cfg.Raw()
	if err != nil {
		return nil, err
	}
	configured := cfg.AIProvider()

	for _, name := range ProviderAttempts(configured) {
		p, err := s.buildProvider(ctx, cfg, name)
		if err != nil {
			if name == types.ProviderLocal {
				return nil, err
			}
			s.logFallback(ctx, "ai provider", string(name), string(types.ProviderLocal), err)
			continue
		}

		p = provider.WithEmbeddingCache(p, cfg.AI.EmbeddingCacheSize)

		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.prov = p
			s.state.ConfiguredProvider = configured
			s.state.ActiveProvider = name
		}
		s.mu.Unlock()
		if !current {
			s.retire("provider", p)
		}

		s.logger.InfoContext(ctx, "ai provider selected", "provider", name, "configured", configured)
		return p, nil
	}

	// Unreachable: local is always the last attempt.
	return nil, sqerr.New(sqerr.CodeProviderAllUnavailable, "no ai provider available")
}

func (s *Selector) buildProvider(ctx context.Context, cfg *config.Config, name types.AIProvider) (provider.Provider, error) {
	pc := cfg.Provider(name)
	p, err := s.registry.New(name, provider.ProviderConfig{
		APIKey:         s.credential(ctx, "ai provider", string(name), pc.APIKey),
		BaseURL:        pc.Endpoint,
		Model:          pc.Model,
		EmbeddingModel: pc.EmbeddingModel,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := p.Initialize(ctx); err != nil {
		_ = p.Close()
		return nil, sqerr.With(err, sqerr.FieldProvider(string(name)))
	}
	return p, nil
}

// Store returns the active note store, resolving it on first use.
func (s *Selector) Store(ctx context.Context) (store.NoteStore, error) {
	s.mu.RLock()
	st := s.store
	s.mu.RUnlock()
	if st != nil {
		return st, nil
	}

	v, err, _ := s.group.Do("store", func() (any, error) {
		return s.resolveStore(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(store.NoteStore), nil
}

func (s *Selector) resolveStore(ctx context.Context) (store.NoteStore, error) {
	s.mu.RLock()
	gen, cached := s.gen, s.store
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	cfg, err := s.cfg.Raw()
	if err != nil {
		return nil, err
	}
	configured := cfg.StorageBackend()

	for _, backend := range StoreAttempts(configured) {
		sc := store.StorageConfig{
			Backend: string(backend),
			DataDir: cfg.Storage.DataDir,
		}
		if backend == types.StoragePostgres {
			sc.Postgres = store.PostgresConfig{
				DSN:          s.credential(ctx, "storage backend", string(backend), cfg.Storage.Postgres.DSN),
				MaxOpenConns: cfg.Storage.Postgres.MaxOpenConns,
			}
		}
		st, err := s.newStore(sc)
		if err != nil {
			// Only missing credentials fall back; a broken backend is an error.
			if backend != types.StorageSQLite && sqerr.IsNotConfigured(err) {
				s.logFallback(ctx, "storage backend", string(backend), string(types.StorageSQLite), err)
				continue
			}
			return nil, sqerr.With(err, sqerr.FieldBackend(string(backend)))
		}
		if err := st.Initialize(ctx); err != nil {
			_ = st.Close()
			return nil, sqerr.With(err, sqerr.FieldBackend(string(backend)))
		}

		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.store = st
			s.state.ConfiguredStore = configured
			s.state.ActiveStore = backend
		}
		s.mu.Unlock()
		if !current {
			s.retire("store", st)
		}

		s.logger.InfoContext(ctx, "note store selected", "backend", backend, "configured", configured)
		return st, nil
	}

	return nil, sqerr.New(sqerr.CodeStoreBackendUnavailable, "no storage backend available")
}

// credential resolves a credential reference. A reference that cannot be
// resolved reads as missing, so the attempt falls back like any other
// unconfigured variant.
func (s *Selector) credential(ctx context.Context, kind, name, value string) string {
	if value == "" {
		return ""
	}
	resolved, err := s.cfg.ResolveSecret(value)
	if err != nil {
		s.logger.WarnContext(ctx, kind+" credential unavailable; treating as missing",
			"name", name,
			"error", err,
		)
		return ""
	}
	return resolved
}

func (s *Selector) logFallback(ctx context.Context, kind, from, to string, cause error) {
	msg := kind + " unusable; falling back"
	if sqerr.IsNotConfigured(cause) {
		msg = kind + " not configured; falling back"
	}
	s.logger.WarnContext(ctx, msg, "from", from, "to", to, "error", cause)
}

// State reports the configured and active variants. Active fields are empty
// until the corresponding instance has been resolved.
func (s *Selector) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Invalidate drops the cached instances so the next call re-reads the
// configuration. Holders of the old instances may keep using them until
// they are closed after the retire delay. A resolution already in flight is
// returned to its callers but not cached.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	p, st := s.prov, s.store
	s.gen++
	s.prov = nil
	s.store = nil
	s.state = State{}
	s.mu.Unlock()

	s.group.Forget("provider")
	s.group.Forget("store")
	if p != nil {
		s.retire("provider", p)
	}
	if st != nil {
		s.retire("store", st)
	}
	s.logger.Debug("selection invalidated")
}

// retire closes c once the retire delay has passed.
func (s *Selector) retire(kind string, c io.Closer) {
	s.retiredMu.Lock()
	defer s.retiredMu.Unlock()

	s.retiredID++
	id := s.retiredID
	r := &retiree{closer: c}
	r.timer = time.AfterFunc(s.retireDelay, func() {
		s.retiredMu.Lock()
		_, pending := s.retired[id]
		delete(s.retired, id)
		s.retiredMu.Unlock()
		if !pending {
			return
		}
		if err := c.Close(); err != nil {
			s.logger.Warn("closing replaced instance", "kind", kind, "error", err)
		}
	})
	s.retired[id] = r
}

// Close closes the cached instances and any replaced ones still open.
func (s *Selector) Close() error {
	s.mu.Lock()
	p, st := s.prov, s.store
	s.gen++
	s.prov = nil
	s.store = nil
	s.state = State{}
	s.mu.Unlock()

	s.retiredMu.Lock()
	retired := s.retired
	s.retired = map[uint64]*retiree{}
	s.retiredMu.Unlock()

	var errs []error
	for _, r := range retired {
		r.timer.Stop()
		if err := r.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return sqerr.Join(errs...)
}
