// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package knowledge_test

import (
	"context"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/local"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_WithLocalProvider(t *testing.T) {
	ctx := context.Background()
	p, err := local.New(local.Config{})
	require.NoError(t, err)
	require.NoError(t, p.Initialize(ctx))
	st := newStore(t)
	svc := newService(p, st)

	note, err := svc.Capture(ctx, knowledge.CaptureInput{
		Content: "  Postgres indexes speed up postgres queries; indexes need maintenance.  ",
		Source:  store.Source{URL: "https://example.com/pg", Title: "Postgres tips"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "Postgres indexes speed up postgres queries; indexes need maintenance.", note.Content)
	assert.Len(t, note.Embedding, provider.HashDimensions)
	assert.Equal(t, provider.HashEmbeddingModel, note.EmbeddingModel)
	assert.Equal(t, []string{"postgres", "indexes"}, note.Tags[:2])
	assert.Equal(t, store.SourcePlain, note.Source.Kind)
	assert.True(t, captureTime.Equal(note.Source.CapturedAt))

	got, err := svc.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.Tags, got.Tags)
}

func TestCapture_StoresProviderTagsInOrder(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	svc := newService(&stubProvider{tags: []string{"rust", "ownership", "model"}}, st)

	note, err := svc.Capture(ctx, knowledge.CaptureInput{Content: "Rust ownership model explained"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rust", "ownership", "model"}, note.Tags)
	assert.NotEmpty(t, note.Embedding)
	assert.Equal(t, "stub-embed", note.EmbeddingModel)

	got, err := st.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rust", "ownership", "model"}, got.Tags)
	assert.Equal(t, note.Embedding, got.Embedding)
}

// fallbackEmbedder reports that its vectors came from the hash embedding.
type fallbackEmbedder struct {
	*stubProvider
}

func (f fallbackEmbedder) EmbedWithModel(ctx context.Context, text string) ([]float32, string, error) {
	v, err := f.GenerateEmbedding(ctx, text)
	return v, provider.HashEmbeddingModel, err
}

func TestCapture_StampsModelActuallyUsed(t *testing.T) {
	ctx := context.Background()
	svc := newService(fallbackEmbedder{&stubProvider{tags: []string{"bread"}}}, newStore(t))

	note, err := svc.Capture(ctx, knowledge.CaptureInput{Content: "sourdough starter feeding"})
	require.NoError(t, err)
	assert.Equal(t, provider.HashEmbeddingModel, note.EmbeddingModel)

	updated, err := svc.UpdateContent(ctx, note.ID, "rye starter feeding")
	require.NoError(t, err)
	assert.Equal(t, provider.HashEmbeddingModel, updated.EmbeddingModel)
}

func TestCapture_RejectsEmptyContent(t *testing.T) {
	st := newStore(t)
	svc := newService(&stubProvider{}, st)

	_, err := svc.Capture(context.Background(), knowledge.CaptureInput{Content: " \n\t "})
	require.Error(t, err)
	assert.True(t, sqerr.IsInvalidInput(err))
}

func TestCapture_TagFailureSavesNothing(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	upstream := sqerr.New(sqerr.CodeProviderUpstreamFailure, "model overloaded")
	svc := newService(&stubProvider{tagErr: upstream}, st)

	_, err := svc.Capture(ctx, knowledge.CaptureInput{Content: "something worth keeping"})
	require.Error(t, err)
	assert.True(t, sqerr.IsUpstreamFailure(err))

	notes, err := st.GetAllNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCapture_StampsProviderEmbeddingModel(t *testing.T) {
	st := newStore(t)
	svc := newService(&stubProvider{tags: []string{"go"}}, st)

	note, err := svc.Capture(context.Background(), knowledge.CaptureInput{Content: "goroutines"})
	require.NoError(t, err)
	assert.Equal(t, "stub-embed", note.EmbeddingModel)
	assert.Equal(t, []string{"go"}, note.Tags)
}

func TestCaptureVideo(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{tags: []string{"databases"}}
	svc := newService(p, newStore(t))

	note, err := svc.CaptureVideo(ctx, knowledge.VideoClip{
		VideoID:       "abc123",
		OffsetSeconds: 75,
		Title:         "Intro to B-trees",
		Channel:       "CS Lectures",
		Transcript:    "a b-tree keeps keys sorted",
	})
	require.NoError(t, err)

	assert.Equal(t, "Intro to B-trees\n\na b-tree keeps keys sorted", note.Content)
	assert.Equal(t, []string{"databases", "youtube"}, note.Tags)
	assert.Equal(t, store.SourceVideo, note.Source.Kind)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123&t=75s", note.Source.URL)
	assert.Equal(t, "Intro to B-trees [1:15]", note.Source.Title)
	require.NotNil(t, note.Source.Video)
	assert.Equal(t, 75, note.Source.Video.OffsetSeconds)
	assert.Equal(t, "CS Lectures", note.Source.Video.Channel)

	assert.Equal(t, []string{"a b-tree keeps keys sorted"}, p.embedded(), "the transcript is embedded")
}

func TestCaptureVideo_TitleOnly(t *testing.T) {
	p := &stubProvider{tags: []string{"youtube", "music"}}
	svc := newService(p, newStore(t))

	note, err := svc.CaptureVideo(context.Background(), knowledge.VideoClip{VideoID: "x", Title: "Live set"})
	require.NoError(t, err)
	assert.Equal(t, "Live set", note.Content)
	assert.Equal(t, []string{"youtube", "music"}, note.Tags, "existing video tag is not duplicated")
	assert.Equal(t, []string{"Live set"}, p.embedded())
}

func TestCaptureVideo_Validation(t *testing.T) {
	svc := newService(&stubProvider{}, newStore(t))

	for name, clip := range map[string]knowledge.VideoClip{
		"missing id":      {Title: "t"},
		"missing title":   {VideoID: "v"},
		"negative offset": {VideoID: "v", Title: "t", OffsetSeconds: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CaptureVideo(context.Background(), clip)
			require.Error(t, err)
			assert.True(t, sqerr.IsInvalidInput(err))
		})
	}
}

func TestFormatOffset(t *testing.T) {
	tests := map[int]string{
		0:    "0:00",
		9:    "0:09",
		75:   "1:15",
		3599: "59:59",
		3600: "1:00:00",
		3725: "1:02:05",
	}
	for secs, want := range tests {
		assert.Equal(t, want, knowledge.FormatOffset(secs), "offset %d", secs)
	}
}

func TestVideoURL_EscapesID(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=a%26b&t=0s", knowledge.VideoURL("a&b", 0))
}

func TestUpdateContent_ReEmbedsAndKeepsVideoTag(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{tags: []string{"lecture"}}
	svc := newService(p, newStore(t))

	note, err := svc.CaptureVideo(ctx, knowledge.VideoClip{VideoID: "v1", Title: "Old"})
	require.NoError(t, err)

	p.tags = []string{"graphs"}
	updated, err := svc.UpdateContent(ctx, note.ID, "Graph search")
	require.NoError(t, err)
	assert.Equal(t, "Graph search", updated.Content)
	assert.Equal(t, []string{"graphs", "youtube"}, updated.Tags)
	assert.Equal(t, provider.HashEmbedding("Graph search"), updated.Embedding)
	assert.True(t, note.CreatedAt.Equal(updated.CreatedAt))
}

func TestUpdateContent_Errors(t *testing.T) {
	svc := newService(&stubProvider{}, newStore(t))

	_, err := svc.UpdateContent(context.Background(), "missing", "text")
	assert.True(t, sqerr.IsNotFound(err))

	_, err = svc.UpdateContent(context.Background(), "missing", "  ")
	assert.True(t, sqerr.IsInvalidInput(err))
}

func TestUpdateTags_Normalizes(t *testing.T) {
	ctx := context.Background()
	svc := newService(&stubProvider{tags: []string{"old"}}, newStore(t))

	note, err := svc.Capture(ctx, knowledge.CaptureInput{Content: "content"})
	require.NoError(t, err)

	updated, err := svc.UpdateTags(ctx, note.ID, []string{"Machine Learning!", "the", "42", "machine-learning"})
	require.NoError(t, err)
	assert.Equal(t, []string{"machine-learning"}, updated.Tags)

	_, err = svc.UpdateTags(ctx, "nope", []string{"x"})
	assert.True(t, sqerr.IsNotFound(err))
}

func TestPassThroughOperations(t *testing.T) {
	ctx := context.Background()
	svc := newService(&stubProvider{tags: []string{"alpha"}}, newStore(t))

	a, err := svc.Capture(ctx, knowledge.CaptureInput{Content: "first note"})
	require.NoError(t, err)
	_, err = svc.Capture(ctx, knowledge.CaptureInput{Content: "second note"})
	require.NoError(t, err)

	found, err := svc.Search(ctx, "FIRST")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	recent, err := svc.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "second note", recent[0].Content)

	byTag, err := svc.ByTag(ctx, " Alpha ")
	require.NoError(t, err)
	assert.Len(t, byTag, 2)

	allTags, err := svc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, allTags)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.True(t, sqerr.IsNotFound(err))
	require.NoError(t, svc.Delete(ctx, a.ID), "deleting twice is a no-op")

	n, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStatus_ReportsProvider(t *testing.T) {
	svc := newService(&stubProvider{}, newStore(t))

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stub", st.Provider)
}

