// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package types

import (
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// StorageBackend names a note repository implementation.
type StorageBackend string

const (
	// StorageSQLite is the local embedded backend and the universal fallback.
	StorageSQLite StorageBackend = "sqlite"
	// StoragePostgres is the remote relational backend with a vector column.
	StoragePostgres StorageBackend = "postgres"
)

var storageAliases = map[string]StorageBackend{
	"local":    StorageSQLite,
	"remote":   StoragePostgres,
	"postgres": StoragePostgres,
	"pg":       StoragePostgres,
	"sqlite":   StorageSQLite,
}

// Valid reports whether b is a recognized storage backend.
func (b StorageBackend) Valid() bool {
	switch b {
	case StorageSQLite, StoragePostgres:
		return true
	default:
		return false
	}
}

// ParseStorageBackend parses a case-insensitive backend name, accepting the
// "local" and "remote" aliases. An empty string selects the local backend.
func ParseStorageBackend(s string) (StorageBackend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StorageSQLite, nil
	}
	if b, ok := storageAliases[s]; ok {
		return b, nil
	}
	return "", sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue, "invalid storage backend: %q", s)
}
