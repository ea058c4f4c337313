// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package postgres

import (
	"strings"

	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

func init() {
	store.RegisterBackend(types.StoragePostgres, newStore)
}

func newStore(cfg store.StorageConfig) (store.NoteStore, error) {
	if strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return nil, sqerr.New(sqerr.CodeStoreConfigNotConfigured,
			"postgres backend requires storage.postgres.dsn", sqerr.FieldBackend(string(types.StoragePostgres)))
	}
	return Open(cfg.Postgres)
}
