// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store

import (
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// NotFound returns the error UpdateNote reports for an unknown id.
func NotFound(id string) error {
	return sqerr.New(sqerr.CodeStoreNoteNotFound, "note not found", sqerr.FieldNoteID(id))
}

// DatabaseError wraps a backend failure.
func DatabaseError(err error, op string, fields ...sqerr.Attr) error {
	return sqerr.Wrap(err, sqerr.CodeStoreDatabaseFailure, op, fields...)
}
