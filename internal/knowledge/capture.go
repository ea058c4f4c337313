// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/store"
	"github.com/squirrel-notes/squirrel/internal/tags"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// VideoTag marks notes captured from a video.
const VideoTag = "youtube"

// CaptureInput is a plain capture.
type CaptureInput struct {
	Content string       `json:"content"`
	Source  store.Source `json:"source"`
}

// VideoClip is a capture of a moment in a video.
type VideoClip struct {
	VideoID       string `json:"video_id"`
	OffsetSeconds int    `json:"offset_seconds"`
	Title         string `json:"title"`
	Channel       string `json:"channel,omitempty"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	Transcript    string `json:"transcript,omitempty"`
}

// Capture embeds and tags content concurrently and saves the note. Nothing
// is saved when either derivation fails.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (*store.Note, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, sqerr.New(sqerr.CodeKnowledgeCaptureInvalidInput, "content must not be empty")
	}
	return s.capture(ctx, content, content, in.Source)
}

// CaptureVideo saves a clip. The transcript, when present, is what gets
// embedded and tagged; the title always leads the stored content.
func (s *Service) CaptureVideo(ctx context.Context, clip VideoClip) (*store.Note, error) {
	clip.VideoID = strings.TrimSpace(clip.VideoID)
	clip.Title = strings.TrimSpace(clip.Title)
	clip.Transcript = strings.TrimSpace(clip.Transcript)

	if clip.VideoID == "" {
		return nil, sqerr.New(sqerr.CodeKnowledgeCaptureInvalidInput, "video id must not be empty")
	}
	if clip.Title == "" {
		return nil, sqerr.New(sqerr.CodeKnowledgeCaptureInvalidInput, "video title must not be empty")
	}
	if clip.OffsetSeconds < 0 {
		return nil, sqerr.Errorf(sqerr.CodeKnowledgeCaptureInvalidInput,
			"video offset must not be negative, got %d", clip.OffsetSeconds)
	}

	content, analyzed := clip.Title, clip.Title
	if clip.Transcript != "" {
		content = clip.Title + "\n\n" + clip.Transcript
		analyzed = clip.Transcript
	}

	source := store.Source{
		URL:   VideoURL(clip.VideoID, clip.OffsetSeconds),
		Title: fmt.Sprintf("%s [%s]", clip.Title, FormatOffset(clip.OffsetSeconds)),
		Kind:  store.SourceVideo,
		Video: &store.VideoSource{
			VideoID:       clip.VideoID,
			OffsetSeconds: clip.OffsetSeconds,
			Channel:       clip.Channel,
			Thumbnail:     clip.Thumbnail,
		},
	}
	return s.capture(ctx, content, analyzed, source)
}

func (s *Service) capture(ctx context.Context, content, analyzed string, source store.Source) (*store.Note, error) {
	p, st, err := s.backends(ctx)
	if err != nil {
		return nil, err
	}

	if source.Kind == "" {
		source.Kind = store.SourcePlain
	}
	if source.CapturedAt.IsZero() {
		source.CapturedAt = s.opts.Now().UTC()
	}

	var (
		embedding []float32
		model     string
		noteTags  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, m, err := provider.Embed(gctx, p, analyzed)
		if err != nil {
			return sqerr.With(err, sqerr.FieldProvider(p.Name()))
		}
		embedding, model = v, m
		return nil
	})
	g.Go(func() error {
		t, err := p.GenerateTags(gctx, analyzed)
		if err != nil {
			return sqerr.With(err, sqerr.FieldProvider(p.Name()))
		}
		noteTags = t
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "capture failed; note not saved", "provider", p.Name(), "error", err)
		return nil, err
	}

	if noteTags == nil {
		noteTags = []string{}
	}
	if source.IsVideo() && !tags.Contains(noteTags, VideoTag) {
		noteTags = append(noteTags, VideoTag)
	}

	saved, err := st.SaveNote(ctx, &store.Note{
		Content:        content,
		Embedding:      embedding,
		EmbeddingModel: model,
		Tags:           noteTags,
		Source:         source,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "note captured",
		"note_id", saved.ID,
		"kind", saved.Source.Kind,
		"tags", len(saved.Tags),
		"embedding_model", saved.EmbeddingModel,
	)
	return saved, nil
}

// VideoURL links to the video at the given offset.
func VideoURL(videoID string, offsetSeconds int) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s&t=%ds", url.QueryEscape(videoID), offsetSeconds)
}

// FormatOffset renders seconds as m:ss, or h:mm:ss from one hour on.
func FormatOffset(seconds int) string {
	h, m, sec := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
