// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package store defines the note repository contract shared by every
// storage backend, and the registry backends add themselves to.
package store

import (
	"context"
	"strings"

	"github.com/squirrel-notes/squirrel/pkg/vector"
)

// Default limits applied when callers pass limit <= 0.
const (
	DefaultVectorLimit = 10
	DefaultRecentLimit = 10
)

// NoteStore persists notes and answers keyword, tag, recency and vector
// queries over them. Implementations are safe for concurrent use.
//
// Ordering contract shared by all backends: GetAllNotes returns notes
// newest first, ties broken by id. SearchByVector ranks by
// vector.CosineSimilarity descending and breaks ties in GetAllNotes order;
// notes without an embedding never appear in vector results.
type NoteStore interface {
	// Initialize connects and prepares the schema. It is idempotent.
	Initialize(ctx context.Context) error

	// SaveNote assigns ID, CreatedAt and UpdatedAt and persists the note.
	SaveNote(ctx context.Context, note *Note) (*Note, error)
	// GetNote returns (nil, nil) when no note has the id.
	GetNote(ctx context.Context, id string) (*Note, error)
	GetAllNotes(ctx context.Context) ([]*Note, error)
	// DeleteNote is a no-op for unknown ids.
	DeleteNote(ctx context.Context, id string) error
	// UpdateNote merges patch into the stored note, refreshing UpdatedAt.
	// Unknown ids fail with a NotFound error.
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*Note, error)

	// SearchNotes matches query as a case-insensitive substring of the
	// content or of any tag. An empty query matches every note.
	SearchNotes(ctx context.Context, query string) ([]*Note, error)
	SearchByVector(ctx context.Context, embedding []float32, limit int) ([]*ScoredNote, error)
	SearchByTag(ctx context.Context, tag string) ([]*Note, error)
	GetRecentNotes(ctx context.Context, limit int) ([]*Note, error)
	// GetTags returns the sorted union of all tags.
	GetTags(ctx context.Context) ([]string, error)
	// ClearAll deletes every note and returns how many were removed.
	ClearAll(ctx context.Context) (int64, error)

	Close() error
}

// Limit returns limit, or def when limit is not positive.
func Limit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

// RankByVector applies the shared vector ranking to notes already in
// GetAllNotes order.
func RankByVector(notes []*Note, embedding []float32, limit int) []*ScoredNote {
	ranked := vector.TopK(embedding, notes, func(n *Note) []float32 { return n.Embedding }, Limit(limit, DefaultVectorLimit))

	out := make([]*ScoredNote, len(ranked))
	for i, r := range ranked {
		out[i] = &ScoredNote{Note: r.Item, Score: r.Score}
	}
	return out
}

// MatchesQuery reports whether query is a case-insensitive substring of the
// note's content or of one of its tags.
func MatchesQuery(n *Note, query string) bool {
	q := strings.ToLower(query)
	if q == "" || strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, tag := range n.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
