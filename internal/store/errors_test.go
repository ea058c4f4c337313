// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store_test

import (
	stderrors "errors"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := store.NotFound("n-1")
	assert.True(t, sqerr.IsNotFound(err))
	assert.Equal(t, "n-1", sqerr.FieldsOf(err)["note_id"])
}

func TestDatabaseError(t *testing.T) {
	root := stderrors.New("disk I/O error")
	err := store.DatabaseError(root, "saving note", sqerr.FieldNoteID("n-2"))

	assert.ErrorIs(t, err, root)
	assert.True(t, sqerr.HasCode(err, sqerr.CodeStoreDatabaseFailure))
	assert.NoError(t, store.DatabaseError(nil, "noop"))
}
