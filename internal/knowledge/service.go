// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package knowledge captures notes and answers questions over them. Every
// call asks its sources for the current provider and store, so a
// configuration change takes effect on the next request.
package knowledge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
)

// ProviderSource returns the active AI provider.
type ProviderSource interface {
	Provider(ctx context.Context) (provider.Provider, error)
}

// StoreSource returns the active note store.
type StoreSource interface {
	Store(ctx context.Context) (store.NoteStore, error)
}

// Retrieval defaults.
const (
	DefaultTopK            = 5
	DefaultTopicLimit      = 10
	DefaultMaxContextChars = 4000
)

// Options tune retrieval. Zero values select the defaults.
type Options struct {
	// TopK is the number of notes retrieved by similarity.
	TopK int
	// TopicLimit is the number of recent notes considered for a topical question.
	TopicLimit int
	// MaxContextChars bounds the context handed to the provider.
	MaxContextChars int
	Logger          *slog.Logger
	// Now overrides the clock used to stamp captures.
	Now func() time.Time
}

// Limits bound retrieval for one question.
type Limits struct {
	TopK            int
	TopicLimit      int
	MaxContextChars int
}

// Service orchestrates capture and question answering.
type Service struct {
	providers ProviderSource
	stores    StoreSource
	opts      Options
	logger    *slog.Logger

	mu     sync.RWMutex
	limits Limits
}

// New returns a Service. Both sources are typically a *selection.Selector.
func New(providers ProviderSource, stores StoreSource, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopicLimit <= 0 {
		opts.TopicLimit = DefaultTopicLimit
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		providers: providers,
		stores:    stores,
		opts:      opts,
		logger:    logger,
		limits:    Limits{TopK: opts.TopK, TopicLimit: opts.TopicLimit, MaxContextChars: opts.MaxContextChars},
	}
}

// SetLimits replaces the retrieval limits used by later questions. Zero
// fields keep their current value.
func (s *Service) SetLimits(l Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.TopK > 0 {
		s.limits.TopK = l.TopK
	}
	if l.TopicLimit > 0 {
		s.limits.TopicLimit = l.TopicLimit
	}
	if l.MaxContextChars > 0 {
		s.limits.MaxContextChars = l.MaxContextChars
	}
}

// Limits returns the retrieval limits in effect.
func (s *Service) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

func (s *Service) backends(ctx context.Context) (provider.Provider, store.NoteStore, error) {
	p, err := s.providers.Provider(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, nil, err
	}
	return p, st, nil
}

// Status reports the active provider's health.
func (s *Service) Status(ctx context.Context) (provider.ProviderStatus, error) {
	p, err := s.providers.Provider(ctx)
	if err != nil {
		return provider.ProviderStatus{}, err
	}
	return p.Status(ctx)
}
