// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/selection"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// DefaultListLimit is the number of notes listed when no limit is given.
const DefaultListLimit = 20

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerAskStreamRoute()
	if svc.config != nil {
		s.registerConfigRoutes()
	}
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "capture-note",
		Method:        http.MethodPost,
		Path:          "/api/v1/notes",
		Summary:       "Capture a note",
		Tags:          []string{"notes"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, s.handleCapture)

	huma.Register(s.api, huma.Operation{
		OperationID:   "capture-clip",
		Method:        http.MethodPost,
		Path:          "/api/v1/clips",
		Summary:       "Capture a moment of a video",
		Tags:          []string{"notes"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, s.handleCaptureClip)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes",
		Summary:     "Search, filter by tag, or list recent notes",
		Tags:        []string{"notes"},
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-note",
		Method:      http.MethodGet,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Get a note",
		Tags:        []string{"notes"},
		Errors:      []int{http.StatusNotFound},
	}, s.handleGetNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-note",
		Method:      http.MethodPatch,
		Path:        "/api/v1/notes/{id}",
		Summary:     "Edit a note's content or tags",
		Tags:        []string{"notes"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway},
	}, s.handleUpdateNote)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-note",
		Method:        http.MethodDelete,
		Path:          "/api/v1/notes/{id}",
		Summary:       "Delete a note",
		Tags:          []string{"notes"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-all-notes",
		Method:      http.MethodDelete,
		Path:        "/api/v1/notes",
		Summary:     "Delete every note",
		Tags:        []string{"notes"},
		Errors:      []int{http.StatusBadRequest},
	}, s.handleDeleteAll)

	huma.Register(s.api, huma.Operation{
		OperationID: "ask",
		Method:      http.MethodPost,
		Path:        "/api/v1/ask",
		Summary:     "Answer a question from saved notes",
		Tags:        []string{"qa"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusServiceUnavailable},
	}, s.handleAsk)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List every tag in use",
		Tags:        []string{"notes"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Active provider and storage backend",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

// --- Request/Response types for huma ---

// NoteView is a note as returned by the API. The embedding itself is omitted.
type NoteView struct {
	ID             string       `json:"id"`
	Content        string       `json:"content"`
	Tags           []string     `json:"tags"`
	Source         store.Source `json:"source"`
	EmbeddingModel string       `json:"embedding_model,omitempty"`
	EmbeddingDims  int          `json:"embedding_dims"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func noteView(n *store.Note) NoteView {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteView{
		ID:             n.ID,
		Content:        n.Content,
		Tags:           tags,
		Source:         n.Source,
		EmbeddingModel: n.EmbeddingModel,
		EmbeddingDims:  len(n.Embedding),
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

func noteViews(notes []*store.Note) []NoteView {
	out := make([]NoteView, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteView(n))
	}
	return out
}

type noteOutput struct {
	Body NoteView
}

type notesOutput struct {
	Body struct {
		Notes []NoteView `json:"notes"`
	}
}

type captureInput struct {
	Body struct {
		Content string `json:"content" minLength:"1" doc:"Captured text"`
		URL     string `json:"url,omitempty" doc:"Page the text came from"`
		Title   string `json:"title,omitempty" doc:"Title of that page"`
	}
}

type captureClipInput struct {
	Body struct {
		VideoID       string `json:"video_id" minLength:"1" doc:"YouTube video id"`
		OffsetSeconds int    `json:"offset_seconds,omitempty" minimum:"0" doc:"Playback position in seconds"`
		Title         string `json:"title" minLength:"1" doc:"Video title"`
		Channel       string `json:"channel,omitempty"`
		Thumbnail     string `json:"thumbnail,omitempty"`
		Transcript    string `json:"transcript,omitempty" doc:"Transcript excerpt around the offset"`
	}
}

type listNotesInput struct {
	Query string `query:"q" doc:"Case-insensitive substring of content or tags"`
	Tag   string `query:"tag" doc:"Exact tag"`
	Limit int    `query:"limit" minimum:"0" doc:"Maximum number of notes; 0 selects the default"`
}

type noteIDInput struct {
	ID string `path:"id"`
}

type updateNoteInput struct {
	ID   string `path:"id"`
	Body struct {
		Content *string  `json:"content,omitempty" doc:"New content; embedding and tags are regenerated"`
		Tags    []string `json:"tags,omitempty" doc:"Replacement tags, normalized before saving"`
	}
}

type deleteAllInput struct {
	Confirm bool `query:"confirm" doc:"Must be true"`
}

type deleteAllOutput struct {
	Body struct {
		Deleted int64 `json:"deleted"`
	}
}

type askInput struct {
	Body struct {
		Question string `json:"question" minLength:"1"`
	}
}

type askOutput struct {
	Body knowledge.Answer
}

type tagsOutput struct {
	Body struct {
		Tags []string `json:"tags"`
	}
}

type statusOutput struct {
	Body struct {
		Selection selection.State         `json:"selection"`
		Provider  provider.ProviderStatus `json:"provider"`
	}
}

// --- Handlers ---

// httpError maps a coded error to a huma error. Server-side failures are
// logged and reported without internal detail.
func (s *Server) httpError(ctx context.Context, op string, err error) error {
	status := sqerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, op+" failed", "error", err, "code", sqerr.CodeOf(err))
		if status == http.StatusInternalServerError {
			return huma.Error500InternalServerError(op + " failed")
		}
	}
	return huma.NewError(status, err.Error())
}

func (s *Server) handleCapture(ctx context.Context, input *captureInput) (*noteOutput, error) {
	n, err := s.services.notes.Capture(ctx, knowledge.CaptureInput{
		Content: input.Body.Content,
		Source:  store.Source{URL: input.Body.URL, Title: input.Body.Title},
	})
	if err != nil {
		return nil, s.httpError(ctx, "capturing note", err)
	}
	return &noteOutput{Body: noteView(n)}, nil
}

func (s *Server) handleCaptureClip(ctx context.Context, input *captureClipInput) (*noteOutput, error) {
	n, err := s.services.notes.CaptureVideo(ctx, knowledge.VideoClip{
		VideoID:       input.Body.VideoID,
		OffsetSeconds: input.Body.OffsetSeconds,
		Title:         input.Body.Title,
		Channel:       input.Body.Channel,
		Thumbnail:     input.Body.Thumbnail,
		Transcript:    input.Body.Transcript,
	})
	if err != nil {
		return nil, s.httpError(ctx, "capturing clip", err)
	}
	return &noteOutput{Body: noteView(n)}, nil
}

func (s *Server) handleListNotes(ctx context.Context, input *listNotesInput) (*notesOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	var (
		notes []*store.Note
		err   error
	)
	switch {
	case input.Tag != "":
		notes, err = s.services.notes.ByTag(ctx, input.Tag)
	case input.Query != "":
		notes, err = s.services.notes.Search(ctx, input.Query)
	default:
		notes, err = s.services.notes.Recent(ctx, limit)
	}
	if err != nil {
		return nil, s.httpError(ctx, "listing notes", err)
	}
	if len(notes) > limit {
		notes = notes[:limit]
	}

	out := &notesOutput{}
	out.Body.Notes = noteViews(notes)
	return out, nil
}

func (s *Server) handleGetNote(ctx context.Context, input *noteIDInput) (*noteOutput, error) {
	n, err := s.services.notes.Get(ctx, input.ID)
	if err != nil {
		return nil, s.httpError(ctx, "getting note", err)
	}
	return &noteOutput{Body: noteView(n)}, nil
}

func (s *Server) handleUpdateNote(ctx context.Context, input *updateNoteInput) (*noteOutput, error) {
	if input.Body.Content == nil && input.Body.Tags == nil {
		return nil, huma.Error400BadRequest("content or tags must be given")
	}

	var (
		n   *store.Note
		err error
	)
	if input.Body.Content != nil {
		if n, err = s.services.notes.UpdateContent(ctx, input.ID, *input.Body.Content); err != nil {
			return nil, s.httpError(ctx, "updating note content", err)
		}
	}
	// Explicit tags win over the ones derived from new content.
	if input.Body.Tags != nil {
		if n, err = s.services.notes.UpdateTags(ctx, input.ID, input.Body.Tags); err != nil {
			return nil, s.httpError(ctx, "updating note tags", err)
		}
	}
	return &noteOutput{Body: noteView(n)}, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, input *noteIDInput) (*struct{}, error) {
	if err := s.services.notes.Delete(ctx, input.ID); err != nil {
		return nil, s.httpError(ctx, "deleting note", err)
	}
	return nil, nil
}

func (s *Server) handleDeleteAll(ctx context.Context, input *deleteAllInput) (*deleteAllOutput, error) {
	if !input.Confirm {
		return nil, huma.Error400BadRequest("deleting every note requires confirm=true")
	}
	n, err := s.services.notes.DeleteAll(ctx)
	if err != nil {
		return nil, s.httpError(ctx, "deleting notes", err)
	}
	out := &deleteAllOutput{}
	out.Body.Deleted = n
	return out, nil
}

func (s *Server) handleAsk(ctx context.Context, input *askInput) (*askOutput, error) {
	ans, err := s.services.notes.Answer(ctx, input.Body.Question)
	if err != nil {
		return nil, s.httpError(ctx, "answering question", err)
	}
	return &askOutput{Body: *ans}, nil
}

func (s *Server) handleListTags(ctx context.Context, _ *struct{}) (*tagsOutput, error) {
	tags, err := s.services.notes.Tags(ctx)
	if err != nil {
		return nil, s.httpError(ctx, "listing tags", err)
	}
	if tags == nil {
		tags = []string{}
	}
	out := &tagsOutput{}
	out.Body.Tags = tags
	return out, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*statusOutput, error) {
	st, err := s.services.notes.Status(ctx)
	if err != nil {
		return nil, s.httpError(ctx, "reading provider status", err)
	}
	out := &statusOutput{}
	out.Body.Selection = s.services.selection.State()
	out.Body.Provider = st
	return out, nil
}
