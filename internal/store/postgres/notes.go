// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package postgres is the remote note backend: a notes table with a
// pgvector column, ranked in the database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// Compile-time interface check.
var _ store.NoteStore = (*Store)(nil)

const noteColumns = `id, content, embedding, embedding_model, tags, source, created_at, updated_at`

// Schema is applied by Initialize. The embedding column has no fixed
// dimension so vectors from different models can coexist.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS notes (
	id              UUID PRIMARY KEY,
	content         TEXT NOT NULL,
	embedding       vector,
	embedding_model TEXT NOT NULL DEFAULT '',
	tags            TEXT[] NOT NULL DEFAULT '{}',
	source          JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notes_created ON notes (created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_notes_tags ON notes USING GIN (tags);
`

// Cosine similarity over the shared prefix of both vectors. A zero-magnitude
// prefix makes pgvector return NaN, which scores 0.
const vectorSearchQuery = `
WITH scored AS (
	SELECT ` + noteColumns + `,
		subvector(embedding, 1, LEAST(vector_dims(embedding), $2)) <=> subvector($1::vector, 1, LEAST(vector_dims(embedding), $2)) AS distance
	FROM notes
	WHERE embedding IS NOT NULL
)
SELECT ` + noteColumns + `,
	CASE WHEN distance = 'NaN'::float8 THEN 0 ELSE 1 - distance END AS score
FROM scored
ORDER BY score DESC, created_at DESC, id
LIMIT $3`

// Store implements store.NoteStore on PostgreSQL with pgvector.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger

	mu      sync.Mutex
	nowFunc func() time.Time
}

// Open returns a store for cfg.DSN. The connection is verified by Initialize.
func Open(cfg store.PostgresConfig) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "opening postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db, logger: slog.Default(), nowFunc: time.Now}
}

// SetNowFunc overrides the clock used for timestamps. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = fn
}

func (s *Store) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	// TIMESTAMPTZ keeps microseconds.
	return s.nowFunc().UTC().Truncate(time.Microsecond)
}

// Initialize verifies connectivity and applies Schema.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return sqerr.Errorf(sqerr.CodeStoreBackendUnavailable, "connecting to postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "applying postgres schema: %w", err)
	}
	s.logger.Debug("postgres note store ready")
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// noteRow is the scan target for a notes row.
type noteRow struct {
	ID             string           `db:"id"`
	Content        string           `db:"content"`
	Embedding      *pgvector.Vector `db:"embedding"`
	EmbeddingModel string           `db:"embedding_model"`
	Tags           pq.StringArray   `db:"tags"`
	Source         []byte           `db:"source"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

type scoredRow struct {
	noteRow
	Score float64 `db:"score"`
}

func (r *noteRow) toNote() (*store.Note, error) {
	n := &store.Note{
		ID:             r.ID,
		Content:        r.Content,
		EmbeddingModel: r.EmbeddingModel,
		Tags:           []string(r.Tags),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.Embedding != nil {
		n.Embedding = r.Embedding.Slice()
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if len(r.Source) > 0 {
		if err := json.Unmarshal(r.Source, &n.Source); err != nil {
			return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "decoding source of note %s: %w", r.ID, err)
		}
	}
	return n, nil
}

func embeddingArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func (s *Store) SaveNote(ctx context.Context, note *store.Note) (*store.Note, error) {
	if err := note.Validate(); err != nil {
		return nil, err
	}

	saved := note.Clone()
	saved.ID = uuid.NewString()
	saved.CreatedAt = s.now()
	saved.UpdatedAt = saved.CreatedAt
	if saved.Source.Kind == "" {
		saved.Source.Kind = store.SourcePlain
	}
	if saved.Tags == nil {
		saved.Tags = []string{}
	}

	source, err := json.Marshal(saved.Source)
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "encoding source: %w", err)
	}

	const q = `INSERT INTO notes (id, content, embedding, embedding_model, tags, source, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, q, saved.ID, saved.Content, embeddingArg(saved.Embedding), saved.EmbeddingModel,
		pq.Array(saved.Tags), source, saved.CreatedAt, saved.UpdatedAt)
	if err != nil {
		return nil, store.DatabaseError(err, "inserting note", sqerr.FieldNoteID(saved.ID))
	}
	return saved, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (*store.Note, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	var row noteRow
	err := s.db.GetContext(ctx, &row, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.DatabaseError(err, "getting note", sqerr.FieldNoteID(id))
	}
	return row.toNote()
}

func (s *Store) GetAllNotes(ctx context.Context) ([]*store.Note, error) {
	return s.selectNotes(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id`)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id); err != nil {
		return store.DatabaseError(err, "deleting note", sqerr.FieldNoteID(id))
	}
	return nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch store.NotePatch) (*store.Note, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if uuid.Validate(id) != nil {
		return nil, store.NotFound(id)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.DatabaseError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row noteRow
	err = tx.GetContext(ctx, &row, `SELECT `+noteColumns+` FROM notes WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	if err != nil {
		return nil, store.DatabaseError(err, "loading note for update", sqerr.FieldNoteID(id))
	}

	n, err := row.toNote()
	if err != nil {
		return nil, err
	}
	n.Apply(patch, s.now())

	source, err := json.Marshal(n.Source)
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "encoding source: %w", err)
	}

	const q = `UPDATE notes SET content = $1, embedding = $2, embedding_model = $3, tags = $4, source = $5, updated_at = $6
WHERE id = $7`

	_, err = tx.ExecContext(ctx, q, n.Content, embeddingArg(n.Embedding), n.EmbeddingModel, pq.Array(n.Tags), source, n.UpdatedAt, id)
	if err != nil {
		return nil, store.DatabaseError(err, "updating note", sqerr.FieldNoteID(id))
	}
	if err := tx.Commit(); err != nil {
		return nil, store.DatabaseError(err, "committing note update", sqerr.FieldNoteID(id))
	}
	return n, nil
}

func (s *Store) SearchNotes(ctx context.Context, query string) ([]*store.Note, error) {
	if query == "" {
		return s.GetAllNotes(ctx)
	}

	const q = `SELECT ` + noteColumns + ` FROM notes
WHERE strpos(lower(content), lower($1)) > 0
	OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE strpos(lower(t), lower($1)) > 0)
ORDER BY created_at DESC, id`
	return s.selectNotes(ctx, q, query)
}

func (s *Store) SearchByVector(ctx context.Context, embedding []float32, limit int) ([]*store.ScoredNote, error) {
	if len(embedding) == 0 {
		return []*store.ScoredNote{}, nil
	}

	var rows []scoredRow
	err := s.db.SelectContext(ctx, &rows, vectorSearchQuery,
		pgvector.NewVector(embedding), len(embedding), store.Limit(limit, store.DefaultVectorLimit))
	if err != nil {
		return nil, store.DatabaseError(err, "searching notes by vector")
	}

	out := make([]*store.ScoredNote, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNote()
		if err != nil {
			return nil, err
		}
		out = append(out, &store.ScoredNote{Note: n, Score: rows[i].Score})
	}
	return out, nil
}

func (s *Store) SearchByTag(ctx context.Context, tag string) ([]*store.Note, error) {
	return s.selectNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE $1 = ANY(tags) ORDER BY created_at DESC, id`, tag)
}

func (s *Store) GetRecentNotes(ctx context.Context, limit int) ([]*store.Note, error) {
	return s.selectNotes(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id LIMIT $1`,
		store.Limit(limit, store.DefaultRecentLimit))
}

func (s *Store) GetTags(ctx context.Context) ([]string, error) {
	tags := []string{}
	err := s.db.SelectContext(ctx, &tags, `SELECT DISTINCT t FROM notes, unnest(tags) AS t ORDER BY t COLLATE "C"`)
	if err != nil {
		return nil, store.DatabaseError(err, "listing tags")
	}
	return tags, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes`)
	if err != nil {
		return 0, store.DatabaseError(err, "clearing notes")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.DatabaseError(err, "counting cleared notes")
	}
	return n, nil
}

func (s *Store) selectNotes(ctx context.Context, q string, args ...any) ([]*store.Note, error) {
	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, store.DatabaseError(err, "querying notes")
	}

	notes := make([]*store.Note, 0, len(rows))
	for i := range rows {
		n, err := rows[i].toNote()
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}
