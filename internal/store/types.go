// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store

import (
	"slices"
	"time"
)

// SourceKind discriminates plain captures from rich media captures.
type SourceKind string

const (
	SourcePlain SourceKind = "plain"
	SourceVideo SourceKind = "video"
)

// VideoSource carries the media fields of a video capture.
type VideoSource struct {
	VideoID       string `json:"video_id"`
	OffsetSeconds int    `json:"offset_seconds"`
	Channel       string `json:"channel,omitempty"`
	Thumbnail     string `json:"thumbnail,omitempty"`
}

// Source describes where a note was captured.
type Source struct {
	URL        string       `json:"url,omitempty"`
	Title      string       `json:"title,omitempty"`
	CapturedAt time.Time    `json:"captured_at"`
	Kind       SourceKind   `json:"kind"`
	Video      *VideoSource `json:"video,omitempty"`
}

// IsVideo reports whether the source is a video capture.
func (s Source) IsVideo() bool {
	return s.Kind == SourceVideo
}

// Note is a captured snippet with its derived embedding and tags.
type Note struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Tags           []string  `json:"tags"`
	Source         Source    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy of n.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	c.Embedding = slices.Clone(n.Embedding)
	c.Tags = slices.Clone(n.Tags)
	if n.Source.Video != nil {
		v := *n.Source.Video
		c.Source.Video = &v
	}
	return &c
}

// HasTag reports whether the note carries tag exactly.
func (n *Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// NotePatch is a partial update. Nil fields are left unchanged.
// ID and CreatedAt are not patchable.
type NotePatch struct {
	Content        *string
	Embedding      []float32
	EmbeddingModel *string
	Tags           []string
	Source         *Source
}

// IsEmpty reports whether the patch changes nothing.
func (p NotePatch) IsEmpty() bool {
	return p.Content == nil && p.Embedding == nil && p.EmbeddingModel == nil && p.Tags == nil && p.Source == nil
}

// Apply merges p into n and stamps UpdatedAt with now.
func (n *Note) Apply(p NotePatch, now time.Time) {
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Embedding != nil {
		n.Embedding = slices.Clone(p.Embedding)
	}
	if p.EmbeddingModel != nil {
		n.EmbeddingModel = *p.EmbeddingModel
	}
	if p.Tags != nil {
		n.Tags = slices.Clone(p.Tags)
	}
	if p.Source != nil {
		n.Source = *p.Source
	}
	n.UpdatedAt = now
}

// ScoredNote is a vector search hit.
type ScoredNote struct {
	Note  *Note   `json:"note"`
	Score float64 `json:"score"`
}
