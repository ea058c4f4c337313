// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// Default API roots probed by ValidateKey.
const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	AnthropicBaseURL  = "https://api.anthropic.com/v1"
	GoogleBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
)

// ValidateKey makes a lightweight call to the provider's models endpoint to
// confirm the API key is accepted. The local provider has no key and always
// validates.
func ValidateKey(ctx context.Context, client *http.Client, name types.AIProvider, key string) error {
	return ValidateKeyAt(ctx, client, name, key, "")
}

// ValidateKeyAt is ValidateKey against an explicit API root, for
// OpenAI-compatible gateways and tests. An empty baseURL uses the default.
func ValidateKeyAt(ctx context.Context, client *http.Client, name types.AIProvider, key, baseURL string) error {
	if name == types.ProviderLocal {
		return nil
	}
	if key == "" {
		return sqerr.New(sqerr.CodeProviderConfigNotConfigured,
			"no api key configured", sqerr.FieldProvider(string(name)))
	}

	req, err := keyCheckRequest(ctx, name, key, baseURL)
	if err != nil {
		return err
	}
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return sqerr.Wrapf(err, sqerr.CodeProviderKeyCheckFailure, "validating %s key", name)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return sqerr.Errorf(sqerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", name, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return sqerr.Errorf(sqerr.CodeProviderKeyCheckFailure, "%s validation failed (HTTP %d)", name, resp.StatusCode)
	}
	return nil
}

func keyCheckRequest(ctx context.Context, name types.AIProvider, key, baseURL string) (*http.Request, error) {
	headers := map[string]string{}
	var root string

	switch name {
	case types.ProviderOpenAI:
		root = OpenAIBaseURL
		headers["Authorization"] = "Bearer " + key
	case types.ProviderOpenRouter:
		root = OpenRouterBaseURL
		headers["Authorization"] = "Bearer " + key
	case types.ProviderAnthropic:
		root = AnthropicBaseURL
		headers["x-api-key"] = key
		headers["anthropic-version"] = "2023-06-01"
	case types.ProviderGoogle:
		// Google's Generative Language API authenticates with a header or query
		// parameter; the header keeps the key out of access logs.
		root = GoogleBaseURL
		headers["x-goog-api-key"] = key
	default:
		return nil, sqerr.New(sqerr.CodeProviderNotFound, "unknown provider: "+string(name),
			sqerr.FieldProvider(string(name)))
	}
	if baseURL != "" {
		root = baseURL
	}

	target, err := url.JoinPath(strings.TrimSuffix(root, "/"), "models")
	if err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeProviderRequestInvalid, "building %s validation url", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeProviderRequestInvalid, "building %s validation request", name)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
