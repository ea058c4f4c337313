// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

const redacted = "********"

// --- Request/Response types ---

type credentialInput struct {
	Provider string `json:"provider" doc:"Provider the key belongs to" enum:"openai,google,anthropic,openrouter"`
	APIKey   string `json:"api_key" minLength:"1" doc:"Provider API key"`
}

type updateConfigInput struct {
	Body struct {
		StorageBackend string            `json:"storage_backend,omitempty" doc:"sqlite or postgres (aliases local, remote)"`
		AIProvider     string            `json:"ai_provider,omitempty" doc:"local, openai, google, anthropic or openrouter"`
		PostgresDSN    string            `json:"postgres_dsn,omitempty" doc:"Connection string of the remote backend"`
		Credentials    []credentialInput `json:"credentials,omitempty" doc:"Provider API keys to store"`
	}
}

// ConfigView is the persisted configuration with credentials masked.
// Keyring references are shown as they carry no secret.
type ConfigView struct {
	StorageBackend string                          `json:"storage_backend"`
	PostgresDSN    string                          `json:"postgres_dsn,omitempty"`
	AIProvider     string                          `json:"ai_provider"`
	Providers      map[string]config.ProviderConfig `json:"providers"`
	QA             config.QAConfig                 `json:"qa"`
}

type configOutput struct {
	Body ConfigView
}

// registerConfigRoutes registers the configuration endpoints.
func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/api/v1/config",
		Summary:     "Show the persisted configuration",
		Tags:        []string{"config"},
	}, s.handleGetConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-config",
		Method:      http.MethodPut,
		Path:        "/api/v1/config",
		Summary:     "Change storage backend, AI provider or credentials",
		Description: "Changes are validated, persisted, and take effect on the next request.",
		Tags:        []string{"config"},
		Errors:      []int{http.StatusBadRequest, http.StatusBadGateway, http.StatusInternalServerError},
	}, s.handleUpdateConfig)
}

func (s *Server) handleGetConfig(ctx context.Context, _ *struct{}) (*configOutput, error) {
	cfg, err := s.services.config.Config.Raw()
	if err != nil {
		return nil, s.httpError(ctx, "reading config", err)
	}
	return &configOutput{Body: configView(cfg)}, nil
}

func (s *Server) handleUpdateConfig(ctx context.Context, input *updateConfigInput) (*configOutput, error) {
	deps := s.services.config
	body := input.Body
	if body.StorageBackend == "" && body.AIProvider == "" && body.PostgresDSN == "" && len(body.Credentials) == 0 {
		return nil, huma.Error400BadRequest("nothing to change")
	}

	// Parse everything before touching the keyring or the file.
	var (
		backend  types.StorageBackend
		provider types.AIProvider
		err      error
	)
	if body.StorageBackend != "" {
		if backend, err = types.ParseStorageBackend(body.StorageBackend); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}
	if body.AIProvider != "" {
		if provider, err = types.ParseAIProvider(body.AIProvider); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}
	creds := make(map[types.AIProvider]string, len(body.Credentials))
	for _, c := range body.Credentials {
		p, err := types.ParseAIProvider(c.Provider)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if p == types.ProviderLocal {
			return nil, huma.Error400BadRequest("the local provider takes no api key")
		}
		creds[p] = c.APIKey
	}

	for p, key := range creds {
		if deps.ValidateProvider == nil {
			continue
		}
		if err := deps.ValidateProvider(ctx, p, key); err != nil {
			if sqerr.HasCode(err, sqerr.CodeProviderKeyInvalid) {
				return nil, huma.Error400BadRequest(fmt.Sprintf("invalid %s API key", p))
			}
			s.logger.ErrorContext(ctx, "provider key validation failed", "provider", p, "error", err)
			return nil, huma.Error502BadGateway(fmt.Sprintf("could not validate %s API key", p))
		}
	}

	for p, key := range creds {
		value, err := s.storeSecret(secrets.ProviderKey(p), key)
		if err != nil {
			return nil, s.httpError(ctx, "storing api key", err)
		}
		if err := deps.Config.Set("providers."+string(p)+".api_key", value); err != nil {
			return nil, s.httpError(ctx, "setting api key", err)
		}
		s.logger.InfoContext(ctx, "provider api key configured", "provider", p)
	}

	if body.PostgresDSN != "" {
		value, err := s.storeSecret(secrets.PostgresDSNKey, body.PostgresDSN)
		if err != nil {
			return nil, s.httpError(ctx, "storing postgres dsn", err)
		}
		if err := deps.Config.Set("storage.postgres.dsn", value); err != nil {
			return nil, s.httpError(ctx, "setting postgres dsn", err)
		}
	}
	if backend != "" {
		if err := deps.Config.Set("storage.backend", string(backend)); err != nil {
			return nil, s.httpError(ctx, "setting storage backend", err)
		}
	}
	if provider != "" {
		if err := deps.Config.Set("ai.provider", string(provider)); err != nil {
			return nil, s.httpError(ctx, "setting ai provider", err)
		}
	}

	if err := deps.Config.Save(); err != nil {
		return nil, s.httpError(ctx, "saving config", err)
	}
	s.logger.InfoContext(ctx, "configuration updated",
		"storage_backend", backend, "ai_provider", provider, "credentials", len(creds))

	return s.handleGetConfig(ctx, nil)
}

// storeSecret puts value in the keyring and returns the reference to
// persist. Without a keyring the value itself is persisted.
func (s *Server) storeSecret(key, value string) (string, error) {
	store := s.services.config.Secrets
	if store == nil {
		return value, nil
	}
	if err := store.Store(secrets.Service, key, value); err != nil {
		return "", err
	}
	return secrets.KeyringURI(key), nil
}

func configView(cfg *config.Config) ConfigView {
	view := ConfigView{
		StorageBackend: string(cfg.StorageBackend()),
		PostgresDSN:    redact(cfg.Storage.Postgres.DSN),
		AIProvider:     string(cfg.AIProvider()),
		Providers:      make(map[string]config.ProviderConfig, len(cfg.Providers)),
		QA:             cfg.QA,
	}
	for name, pc := range cfg.Providers {
		pc.APIKey = redact(pc.APIKey)
		view.Providers[name] = pc
	}
	return view
}

func redact(value string) string {
	if value == "" || secrets.IsKeyringURI(value) {
		return value
	}
	return redacted
}
