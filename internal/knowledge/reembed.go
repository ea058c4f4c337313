// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge

import (
	"context"
	"strings"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// ReembedResult reports a re-embedding pass.
type ReembedResult struct {
	Model      string `json:"model"`
	Checked    int    `json:"checked"`
	Reembedded int    `json:"reembedded"`
	// Degraded counts notes the provider could only embed with a fallback
	// model. They stay stale.
	Degraded int `json:"degraded,omitempty"`
}

// Reembed recomputes the embedding of every note that was not embedded by
// the active provider's model, so similarity only compares vectors of one
// model. With all set, every note is re-embedded. Notes updated before a
// failure keep their new embedding.
func (s *Service) Reembed(ctx context.Context, all bool) (*ReembedResult, error) {
	p, st, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}
	notes, err := st.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}

	model := provider.EmbeddingModelOf(p)
	res := &ReembedResult{Model: model, Checked: len(notes)}
	for _, n := range notes {
		if !all && !IsStale(n, model) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		embedding, used, err := provider.Embed(ctx, p, analyzedText(n))
		if err != nil {
			return res, sqerr.With(err, sqerr.FieldProvider(p.Name()), sqerr.FieldNoteID(n.ID))
		}
		if used != model {
			res.Degraded++
			continue
		}
		if _, err := st.UpdateNote(ctx, n.ID, store.NotePatch{
			Embedding:      embedding,
			EmbeddingModel: &used,
		}); err != nil {
			return res, err
		}
		res.Reembedded++
	}

	s.logger.InfoContext(ctx, "re-embedding finished",
		"embedding_model", model,
		"checked", res.Checked,
		"reembedded", res.Reembedded,
		"degraded", res.Degraded,
	)
	return res, nil
}

// IsStale reports whether n lacks an embedding from model.
func IsStale(n *store.Note, model string) bool {
	return len(n.Embedding) == 0 || n.EmbeddingModel != model
}

// analyzedText is the text a capture embedded: the transcript of a video
// note when it has one, otherwise the content.
func analyzedText(n *store.Note) string {
	if IsVideoNote(n) {
		if _, transcript, ok := strings.Cut(n.Content, "\n\n"); ok && strings.TrimSpace(transcript) != "" {
			return strings.TrimSpace(transcript)
		}
	}
	return n.Content
}
