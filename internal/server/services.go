// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"context"
	"net/http"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	"github.com/squirrel-notes/squirrel/internal/selection"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// NoteService is the knowledge surface used by the routes.
// *knowledge.Service implements it.
type NoteService interface {
	Capture(ctx context.Context, in knowledge.CaptureInput) (*store.Note, error)
	CaptureVideo(ctx context.Context, clip knowledge.VideoClip) (*store.Note, error)
	Get(ctx context.Context, id string) (*store.Note, error)
	Search(ctx context.Context, query string) ([]*store.Note, error)
	ByTag(ctx context.Context, tag string) ([]*store.Note, error)
	Recent(ctx context.Context, limit int) ([]*store.Note, error)
	Tags(ctx context.Context) ([]string, error)
	UpdateTags(ctx context.Context, id string, tags []string) (*store.Note, error)
	UpdateContent(ctx context.Context, id, content string) (*store.Note, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Answer(ctx context.Context, question string) (*knowledge.Answer, error)
	Status(ctx context.Context) (provider.ProviderStatus, error)
}

// SelectionReporter reports the configured and active variants.
// *selection.Selector implements it.
type SelectionReporter interface {
	State() selection.State
}

// ConfigService reads and changes the persisted configuration.
// *config.Manager implements it.
type ConfigService interface {
	Raw() (*config.Config, error)
	Set(key string, value any) error
	Save() error
}

// ProviderKeyValidator checks an API key against the provider.
type ProviderKeyValidator func(ctx context.Context, name types.AIProvider, key string) error

// DefaultProviderKeyValidator validates keys against the real provider APIs.
func DefaultProviderKeyValidator(client *http.Client) ProviderKeyValidator {
	return func(ctx context.Context, name types.AIProvider, key string) error {
		return provider.ValidateKey(ctx, client, name, key)
	}
}

// ConfigDeps holds what the configuration endpoints need. Secrets and
// ValidateProvider are optional: without Secrets, credentials are written to
// the config file as given.
type ConfigDeps struct {
	Config           ConfigService
	Secrets          secrets.Store
	ValidateProvider ProviderKeyValidator
}

// Services holds dependencies injected into route handlers.
// Use NewServices to ensure the required ones are present.
type Services struct {
	notes     NoteService
	selection SelectionReporter
	config    *ConfigDeps // optional; nil = config endpoints unavailable
}

// NewServices validates and bundles the route dependencies. At most one
// ConfigDeps may be supplied.
func NewServices(notes NoteService, sel SelectionReporter, cfg ...*ConfigDeps) (*Services, error) {
	if notes == nil {
		return nil, sqerr.New(sqerr.CodeServerConfigInvalid, "note service is required")
	}
	if sel == nil {
		return nil, sqerr.New(sqerr.CodeServerConfigInvalid, "selection reporter is required")
	}
	if len(cfg) > 1 {
		return nil, sqerr.New(sqerr.CodeServerConfigInvalid, "at most one config dependency set may be supplied")
	}

	s := &Services{notes: notes, selection: sel}
	if len(cfg) == 1 && cfg[0] != nil {
		if cfg[0].Config == nil {
			return nil, sqerr.New(sqerr.CodeServerConfigInvalid, "config service is required when config dependencies are supplied")
		}
		s.config = cfg[0]
	}
	return s, nil
}
