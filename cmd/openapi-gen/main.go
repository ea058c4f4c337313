// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Command openapi-gen writes the OpenAPI document of the squirrel HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/squirrel-notes/squirrel/internal/selection"
	"github.com/squirrel-notes/squirrel/internal/server"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

func main() {
	doc, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateSpec registers every route, configuration endpoints included,
// and renders the document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	svc, err := server.NewServices(stubNotes{}, stubSelection{}, &server.ConfigDeps{Config: stubConfig{}})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, sqerr.Errorf(sqerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// Handlers are never invoked while generating, so the stubs only satisfy
// the interfaces.

type stubNotes struct{ server.NoteService }

type stubConfig struct{ server.ConfigService }

type stubSelection struct{}

func (stubSelection) State() selection.State { return selection.State{} }
