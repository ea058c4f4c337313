// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = "notes.db"

func init() {
	store.RegisterBackend(types.StorageSQLite, newStore)
}

func newStore(cfg store.StorageConfig) (store.NoteStore, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeStoreBackendUnavailable, "creating data directory %s", dir)
	}
	return New(filepath.Join(dir, DBFile))
}
