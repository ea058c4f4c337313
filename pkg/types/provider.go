// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package types

import (
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// AIProvider names an AI capability provider variant.
type AIProvider string

const (
	// ProviderLocal runs on the user's machine and never requires credentials.
	ProviderLocal      AIProvider = "local"
	ProviderOpenAI     AIProvider = "openai"
	ProviderGoogle     AIProvider = "google"
	ProviderAnthropic  AIProvider = "anthropic"
	ProviderOpenRouter AIProvider = "openrouter"
)

var providerAliases = map[string]AIProvider{
	"gemini": ProviderGoogle,
	"chrome": ProviderLocal,
	"ollama": ProviderLocal,
	"claude": ProviderAnthropic,
}

// Valid reports whether p is a recognized provider variant.
func (p AIProvider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderOpenAI, ProviderGoogle, ProviderAnthropic, ProviderOpenRouter:
		return true
	default:
		return false
	}
}

// RequiresCredentials reports whether the variant needs an API key.
func (p AIProvider) RequiresCredentials() bool {
	return p != ProviderLocal
}

// ParseAIProvider parses a case-insensitive provider name. An empty string
// selects the local provider.
func ParseAIProvider(s string) (AIProvider, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProviderLocal, nil
	}
	if p, ok := providerAliases[s]; ok {
		return p, nil
	}
	if p := AIProvider(s); p.Valid() {
		return p, nil
	}
	return "", sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue, "invalid ai provider: %q", s)
}
