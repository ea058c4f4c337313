// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// Excerpt lengths used when rendering notes.
const (
	PreviewChars     = 200
	ExcerptChars     = 250
	DescriptionChars = 200
	recordSeparator  = "\n\n"
)

// topicMarkers route a question to recent video notes instead of search.
var topicMarkers = []string{"youtube", "video"}

// Answer is the reply to a question with the notes it drew on.
type Answer struct {
	Text    string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// SourceRef is a short reference to a note used as context.
type SourceRef struct {
	ID             string   `json:"id"`
	ContentPreview string   `json:"content"`
	Tags           []string `json:"tags"`
	IsRichSource   bool     `json:"is_video"`
	URL            string   `json:"url,omitempty"`
}

// IsTopicalQuestion reports whether question asks about saved videos.
func IsTopicalQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, marker := range topicMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

// IsVideoNote reports whether n was captured from a video.
func IsVideoNote(n *store.Note) bool {
	return n.HasTag(VideoTag) || n.Source.IsVideo()
}

// Answer selects relevant notes, renders them as context and asks the
// provider. With no notes the provider still answers, from empty context.
func (s *Service) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, sqerr.New(sqerr.CodeKnowledgeAnswerInvalidInput, "question must not be empty")
	}

	p, st, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}

	limits := s.Limits()
	candidates, err := s.candidates(ctx, p, st, question, limits)
	if err != nil {
		return nil, err
	}

	contextText, used := BuildContext(candidates, limits.MaxContextChars)
	s.logger.DebugContext(ctx, "answering question",
		"candidates", len(candidates),
		"context_notes", len(used),
		"context_chars", len(contextText),
	)

	text, err := p.AnswerQuestion(ctx, question, contextText)
	if err != nil {
		return nil, sqerr.With(err, sqerr.FieldProvider(p.Name()))
	}

	sources := make([]SourceRef, 0, len(used))
	for _, n := range used {
		sources = append(sources, SourceRef{
			ID:             n.ID,
			ContentPreview: provider.Truncate(n.Content, PreviewChars),
			Tags:           n.Tags,
			IsRichSource:   IsVideoNote(n),
			URL:            n.Source.URL,
		})
	}
	return &Answer{Text: text, Sources: sources}, nil
}

func (s *Service) candidates(ctx context.Context, p provider.Provider, st store.NoteStore, question string, limits Limits) ([]*store.Note, error) {
	if IsTopicalQuestion(question) {
		all, err := st.GetAllNotes(ctx)
		if err != nil {
			return nil, err
		}
		var videos []*store.Note
		for _, n := range all {
			if IsVideoNote(n) {
				videos = append(videos, n)
				if len(videos) == limits.TopicLimit {
					break
				}
			}
		}
		return videos, nil
	}

	embedding, model, err := provider.Embed(ctx, p, question)
	if err != nil {
		return nil, sqerr.With(err, sqerr.FieldProvider(p.Name()))
	}
	hits, err := st.SearchByVector(ctx, embedding, limits.TopK)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		notes := make([]*store.Note, len(hits))
		stale := 0
		for i, h := range hits {
			notes[i] = h.Note
			if IsStale(h.Note, model) {
				stale++
			}
		}
		if stale > 0 {
			s.logger.WarnContext(ctx, "ranked notes embedded by another model; run reembed",
				"embedding_model", model,
				"stale", stale,
			)
		}
		return notes, nil
	}

	s.logger.DebugContext(ctx, "no similar notes; using recent notes")
	return st.GetRecentNotes(ctx, limits.TopK)
}

// BuildContext renders notes as numbered records separated by blank lines.
// Each record is cut to maxChars on its own, and records that would push
// the total past maxChars are dropped whole. It returns the context and the
// notes that made it in.
func BuildContext(notes []*store.Note, maxChars int) (string, []*store.Note) {
	var (
		b     strings.Builder
		used  []*store.Note
		total int
	)
	for _, n := range notes {
		record := provider.Truncate(renderRecord(len(used)+1, n), maxChars)

		size := utf8.RuneCountInString(record)
		if len(used) > 0 {
			size += len(recordSeparator)
		}
		if total+size > maxChars {
			break
		}
		if len(used) > 0 {
			b.WriteString(recordSeparator)
		}
		b.WriteString(record)
		total += size
		used = append(used, n)
	}
	return b.String(), used
}

func renderRecord(index int, n *store.Note) string {
	if IsVideoNote(n) {
		return renderVideo(index, n)
	}
	return renderPlain(index, n)
}

func renderVideo(index int, n *store.Note) string {
	title, rest, _ := strings.Cut(n.Content, "\n")
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Unknown video"
	}

	var topics []string
	for _, t := range n.Tags {
		if t != VideoTag {
			topics = append(topics, t)
		}
	}
	topicText := strings.Join(topics, ", ")
	if topicText == "" {
		topicText = "general"
	}

	description := provider.Truncate(strings.Join(strings.Fields(rest), " "), DescriptionChars)
	if description == "" {
		description = "No description available"
	}

	link := n.Source.URL
	if link == "" {
		link = "N/A"
	}

	return fmt.Sprintf("%d. YouTube Video: \"%s\"\n   - Topic tags: %s\n   - Description: %s\n   - URL: %s",
		index, title, topicText, description, link)
}

func renderPlain(index int, n *store.Note) string {
	excerpt := provider.Truncate(n.Content, ExcerptChars)
	if excerpt != n.Content {
		excerpt += "..."
	}

	title := n.Source.Title
	if title == "" {
		title = "Unknown"
	}

	topics := n.Tags
	if len(topics) > 3 {
		topics = topics[:3]
	}

	return fmt.Sprintf("%d. Note about: %s\n   - Content: %s\n   - Source: %s",
		index, strings.Join(topics, ", "), excerpt, title)
}
