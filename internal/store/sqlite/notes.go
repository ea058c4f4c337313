// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// Compile-time interface check.
var _ store.NoteStore = (*Store)(nil)

// timeLayout is fixed-width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const noteColumns = `id, content, embedding, embedding_model, tags, source, created_at, updated_at`

// Store implements store.NoteStore backed by a single SQLite file.
// Embeddings are kept as sqlite-vec float32 blobs and ranked in process, so
// notes embedded by different models can share one table.
type Store struct {
	path   string
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	nowFunc func() time.Time
	newID   func() string
}

// New returns a store for the database at dbPath. The file is opened and
// migrated by Initialize.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	return &Store{
		path:    dbPath,
		db:      db,
		logger:  slog.Default(),
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}, nil
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
	return s.nowFunc().UTC()
}

// Initialize pings the database and applies the schema.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return sqerr.Errorf(sqerr.CodeStoreBackendUnavailable, "pinging sqlite db: %w", err)
	}

	if err := migrate(ctx, s.db); err != nil {
		return sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "migrating notes table: %w", err)
	}

	var vecVersion string
	if err := s.db.QueryRowContext(ctx, `SELECT vec_version()`).Scan(&vecVersion); err != nil {
		return sqerr.Errorf(sqerr.CodeStoreBackendUnavailable, "sqlite-vec extension not loaded: %w", err)
	}

	s.logger.Debug("sqlite note store ready", "path", s.path, "sqlite_vec", vecVersion)
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS notes (
	id              TEXT PRIMARY KEY,
	content         TEXT NOT NULL,
	embedding       BLOB,
	embedding_dims  INTEGER NOT NULL DEFAULT 0,
	embedding_model TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	source          TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at DESC, id);
`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Embedding blobs pass through vec_f32, which rejects malformed vectors.
// NULL embeddings bypass it.
const (
	insertNoteSQL = `INSERT INTO notes (id, content, embedding, embedding_dims, embedding_model, tags, source, created_at, updated_at)
VALUES (?1, ?2, CASE WHEN ?3 IS NULL THEN NULL ELSE vec_f32(?3) END, ?4, ?5, ?6, ?7, ?8, ?9)`

	updateNoteSQL = `UPDATE notes SET content = ?1,
	embedding = CASE WHEN ?2 IS NULL THEN NULL ELSE vec_f32(?2) END,
	embedding_dims = ?3, embedding_model = ?4, tags = ?5, source = ?6, updated_at = ?7
WHERE id = ?8`
)

func (s *Store) SaveNote(ctx context.Context, note *store.Note) (*store.Note, error) {
	if err := note.Validate(); err != nil {
		return nil, err
	}

	saved := note.Clone()
	saved.ID = s.newID()
	saved.CreatedAt = s.now()
	saved.UpdatedAt = saved.CreatedAt
	if saved.Source.Kind == "" {
		saved.Source.Kind = store.SourcePlain
	}
	if saved.Tags == nil {
		saved.Tags = []string{}
	}

	enc, err := encodeNote(saved)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, insertNoteSQL, saved.ID, saved.Content, enc.embedding, len(saved.Embedding), saved.EmbeddingModel,
		enc.tags, enc.source, formatTime(saved.CreatedAt), formatTime(saved.UpdatedAt))
	if err != nil {
		return nil, store.DatabaseError(err, "inserting note", sqerr.FieldNoteID(saved.ID))
	}
	return saved, nil
}

func (s *Store) GetNote(ctx context.Context, id string) (*store.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.DatabaseError(err, "getting note", sqerr.FieldNoteID(id))
	}
	return n, nil
}

func (s *Store) GetAllNotes(ctx context.Context) ([]*store.Note, error) {
	return s.query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id`)
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return store.DatabaseError(err, "deleting note", sqerr.FieldNoteID(id))
	}
	return nil
}

func (s *Store) UpdateNote(ctx context.Context, id string, patch store.NotePatch) (*store.Note, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.DatabaseError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	n, err := scanNote(tx.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	if err != nil {
		return nil, store.DatabaseError(err, "loading note for update", sqerr.FieldNoteID(id))
	}

	n.Apply(patch, s.now())
	if n.Tags == nil {
		n.Tags = []string{}
	}

	enc, err := encodeNote(n)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, updateNoteSQL, n.Content, enc.embedding, len(n.Embedding), n.EmbeddingModel,
		enc.tags, enc.source, formatTime(n.UpdatedAt), id)
	if err != nil {
		return nil, store.DatabaseError(err, "updating note", sqerr.FieldNoteID(id))
	}

	if err := tx.Commit(); err != nil {
		return nil, store.DatabaseError(err, "committing note update", sqerr.FieldNoteID(id))
	}
	return n, nil
}

func (s *Store) SearchNotes(ctx context.Context, query string) ([]*store.Note, error) {
	all, err := s.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*store.Note, 0, len(all))
	for _, n := range all {
		if store.MatchesQuery(n, query) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) SearchByVector(ctx context.Context, embedding []float32, limit int) ([]*store.ScoredNote, error) {
	if len(embedding) == 0 {
		return []*store.ScoredNote{}, nil
	}

	candidates, err := s.query(ctx, `SELECT `+noteColumns+` FROM notes WHERE embedding IS NOT NULL ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	return store.RankByVector(candidates, embedding, limit), nil
}

func (s *Store) SearchByTag(ctx context.Context, tag string) ([]*store.Note, error) {
	const q = `SELECT ` + noteColumns + ` FROM notes
WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)
ORDER BY created_at DESC, id`
	return s.query(ctx, q, tag)
}

func (s *Store) GetRecentNotes(ctx context.Context, limit int) ([]*store.Note, error) {
	return s.query(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC, id LIMIT ?`,
		store.Limit(limit, store.DefaultRecentLimit))
}

func (s *Store) GetTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT j.value FROM notes, json_each(notes.tags) AS j ORDER BY j.value`)
	if err != nil {
		return nil, store.DatabaseError(err, "listing tags")
	}
	defer func() { _ = rows.Close() }()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, store.DatabaseError(err, "scanning tag")
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating tags")
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

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*store.Note, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, store.DatabaseError(err, "querying notes")
	}
	defer func() { _ = rows.Close() }()

	notes := []*store.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, store.DatabaseError(err, "scanning note")
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating notes")
	}
	return notes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*store.Note, error) {
	var (
		n                    store.Note
		blob                 []byte
		tagsJSON, sourceJSON string
		createdAt, updatedAt string
	)

	if err := row.Scan(&n.ID, &n.Content, &blob, &n.EmbeddingModel, &tagsJSON, &sourceJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	emb, err := decodeEmbedding(blob)
	if err != nil {
		return nil, err
	}
	n.Embedding = emb

	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "decoding tags of note %s: %w", n.ID, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if err := json.Unmarshal([]byte(sourceJSON), &n.Source); err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "decoding source of note %s: %w", n.ID, err)
	}

	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "decoding created_at of note %s: %w", n.ID, err)
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "decoding updated_at of note %s: %w", n.ID, err)
	}
	return &n, nil
}

// encodedNote holds the column values that need serialization.
type encodedNote struct {
	embedding any
	tags      string
	source    string
}

func encodeNote(n *store.Note) (encodedNote, error) {
	blob, err := encodeEmbedding(n.Embedding)
	if err != nil {
		return encodedNote{}, err
	}
	tagsJSON, err := json.Marshal(n.Tags)
	if err != nil {
		return encodedNote{}, sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "encoding tags: %w", err)
	}
	sourceJSON, err := json.Marshal(n.Source)
	if err != nil {
		return encodedNote{}, sqerr.Errorf(sqerr.CodeStoreNoteInvalidInput, "encoding source: %w", err)
	}
	return encodedNote{embedding: blob, tags: string(tagsJSON), source: string(sourceJSON)}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime deserialises a time string stored in the database. An empty
// string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
