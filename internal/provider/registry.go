// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"slices"
	"sync"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// Factory builds an uninitialized provider. Remote variants fail fast with a
// provider.config.not_configured error when their credential is missing.
type Factory func(cfg ProviderConfig) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.AIProvider]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[types.AIProvider]Factory),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name types.AIProvider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New constructs the provider registered under name.
func (r *Registry) New(name types.AIProvider, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, sqerr.New(
			sqerr.CodeProviderNotFound,
			"provider not registered: "+string(name),
			sqerr.FieldProvider(string(name)),
		)
	}

	p, err := f(cfg)
	if err != nil {
		return nil, sqerr.With(err, sqerr.FieldProvider(string(name)))
	}
	return p, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name types.AIProvider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []types.AIProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.AIProvider, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
