// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/squirrel-notes/squirrel/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// newTestStore opens an initialized store whose clock advances one second
// per call, so creation order is unambiguous.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.New(testDBPath(t, "notes"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Initialize(context.Background()))

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetNowFunc(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return s
}
