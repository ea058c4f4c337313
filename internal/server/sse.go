// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// SSEEvent is a single server-sent event. Data is JSON.
type SSEEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// AskStreamRequest is the request body of the streaming ask endpoint.
type AskStreamRequest struct {
	Question string `json:"question"`
}

func (s *Server) registerAskStreamRoute() {
	s.router.Post("/api/v1/ask/stream", s.handleAskStream)

	// The handler needs the raw ResponseWriter, so the route is served by chi
	// and only documented through huma.
	minLen := 1
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "ask-stream",
		Method:      http.MethodPost,
		Path:        "/api/v1/ask/stream",
		Summary:     "Answer a question, reporting progress as server-sent events",
		Description: "Emits status, answer, sources and done events; error replaces answer on failure. " +
			"Without Accept: text/event-stream the events are returned as a JSON array.",
		Tags: []string{"qa"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"question"},
						Properties: map[string]*huma.Schema{
							"question": {Type: "string", MinLength: &minLen},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Event stream, or JSON events depending on the Accept header",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {Schema: &huma.Schema{Type: "string"}},
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"events": {Type: "array", Items: &huma.Schema{Type: "object"}},
							},
						},
					},
				},
			},
			"400": {Description: "Missing question"},
		},
	})
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	var req AskStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return
	}

	events := make(chan SSEEvent, 4)
	go s.streamAnswer(r.Context(), req.Question, events)

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		writeSSE(w, events)
		return
	}
	writeEventsJSON(w, events)
}

// streamAnswer runs the question and closes events when done.
func (s *Server) streamAnswer(ctx context.Context, question string, events chan<- SSEEvent) {
	defer close(events)

	events <- jsonEvent("status", map[string]string{"stage": "answering"})

	ans, err := s.services.notes.Answer(ctx, question)
	if err != nil {
		status := sqerr.HTTPStatus(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			s.logger.ErrorContext(ctx, "answering question failed", "error", err)
			msg = "answering question failed"
		}
		events <- jsonEvent("error", map[string]any{"status": status, "error": msg})
		events <- jsonEvent("done", struct{}{})
		return
	}

	events <- jsonEvent("answer", map[string]string{"answer": ans.Text})
	events <- jsonEvent("sources", ans.Sources)
	events <- jsonEvent("done", struct{}{})
}

func jsonEvent(name string, v any) SSEEvent {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	return SSEEvent{Event: name, Data: string(data)}
}

func writeSSE(w http.ResponseWriter, events <-chan SSEEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	for event := range events {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, event.Data); err != nil {
			// Drain so the producer can finish.
			for range events {
			}
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeEventsJSON(w http.ResponseWriter, events <-chan SSEEvent) {
	var collected []SSEEvent
	for event := range events {
		collected = append(collected, event)
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Events []SSEEvent `json:"events"`
	}{Events: collected}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "encoding response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
