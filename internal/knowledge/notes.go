// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge

import (
	"context"
	"strings"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func (s *Service) Search(ctx context.Context, query string) ([]*store.Note, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.SearchNotes(ctx, strings.TrimSpace(query))
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*store.Note, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.GetRecentNotes(ctx, limit)
}

func (s *Service) ByTag(ctx context.Context, tag string) ([]*store.Note, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.SearchByTag(ctx, strings.ToLower(strings.TrimSpace(tag)))
}

func (s *Service) Tags(ctx context.Context) ([]string, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.GetTags(ctx)
}

// Get returns the note with id, failing with a not_found error when absent.
func (s *Service) Get(ctx context.Context, id string) (*store.Note, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	n, err := st.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, store.NotFound(id)
	}
	return n, nil
}

// Delete removes a note. Unknown ids are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return err
	}
	if err := st.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "note deleted", "note_id", id)
	return nil
}

// DeleteAll removes every note and returns how many there were.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return 0, err
	}
	n, err := st.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "all notes deleted", "count", n)
	return n, nil
}

// UpdateTags replaces a note's tags with the normalized form of raw.
func (s *Service) UpdateTags(ctx context.Context, id string, raw []string) (*store.Note, error) {
	st, err := s.stores.Store(ctx)
	if err != nil {
		return nil, err
	}
	return st.UpdateNote(ctx, id, store.NotePatch{Tags: tags.Clean(raw)})
}

// UpdateContent replaces a note's content and derives a fresh embedding and
// tag set for it. Video notes keep their video tag.
func (s *Service) UpdateContent(ctx context.Context, id, content string) (*store.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, sqerr.New(sqerr.CodeKnowledgeUpdateInvalidInput, "content must not be empty", sqerr.FieldNoteID(id))
	}

	p, st, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := st.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.NotFound(id)
	}

	var (
		embedding []float32
		model     string
		noteTags  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		embedding, model, err = provider.Embed(gctx, p, content)
		return err
	})
	g.Go(func() (err error) {
		noteTags, err = p.GenerateTags(gctx, content)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, sqerr.With(err, sqerr.FieldProvider(p.Name()), sqerr.FieldNoteID(id))
	}

	if noteTags == nil {
		noteTags = []string{}
	}
	if IsVideoNote(existing) && !tags.Contains(noteTags, VideoTag) {
		noteTags = append(noteTags, VideoTag)
	}

	return st.UpdateNote(ctx, id, store.NotePatch{
		Content:        &content,
		Embedding:      embedding,
		EmbeddingModel: &model,
		Tags:           noteTags,
	})
}
