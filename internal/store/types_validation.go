// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store

import (
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// Valid reports whether k is a known source kind. The empty kind reads as plain.
func (k SourceKind) Valid() bool {
	switch k {
	case "", SourcePlain, SourceVideo:
		return true
	default:
		return false
	}
}

// Validate checks the fields a caller controls before a note is persisted.
func (n *Note) Validate() error {
	if n == nil {
		return sqerr.New(sqerr.CodeStoreNoteInvalidInput, "note: nil")
	}
	if strings.TrimSpace(n.Content) == "" {
		return sqerr.New(sqerr.CodeStoreNoteInvalidInput, "note: content is required")
	}
	return n.Source.Validate()
}

// Validate checks that the media fields agree with the source kind.
func (s Source) Validate() error {
	if !s.Kind.Valid() {
		return sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "source: invalid kind %q", s.Kind)
	}
	if s.Kind == SourceVideo && (s.Video == nil || s.Video.VideoID == "") {
		return sqerr.New(sqerr.CodeStoreNoteInvalidInput, "source: video kind requires a video id")
	}
	if s.Kind != SourceVideo && s.Video != nil {
		return sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "source: video fields set on %q source", s.Kind)
	}
	return nil
}

// Validate checks that a patch leaves the note in a valid state.
func (p NotePatch) Validate() error {
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return sqerr.New(sqerr.CodeStoreNoteInvalidInput, "patch: content cannot be emptied")
	}
	if p.Source != nil {
		return p.Source.Validate()
	}
	return nil
}
