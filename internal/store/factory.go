// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store

import (
	"slices"
	"sync"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// BackendFactory builds an uninitialized NoteStore from configuration.
// Factories for credentialed backends fail with a not_configured error when
// the credentials are absent, so callers can substitute the local backend.
type BackendFactory func(cfg StorageConfig) (NoteStore, error)

var (
	factories   = map[types.StorageBackend]BackendFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name types.StorageBackend, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []types.StorageBackend {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]types.StorageBackend, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the store named by cfg.Backend, defaulting to sqlite.
func New(cfg StorageConfig) (NoteStore, error) {
	backend, err := types.ParseStorageBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sqerr.Errorf(sqerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(cfg)
}
