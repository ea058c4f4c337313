// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package builtin registers every provider variant shipped with squirrel.
package builtin

import (
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/provider/anthropic"
	"github.com/squirrel-notes/squirrel/internal/provider/google"
	"github.com/squirrel-notes/squirrel/internal/provider/local"
	"github.com/squirrel-notes/squirrel/internal/provider/openai"
	"github.com/squirrel-notes/squirrel/internal/provider/openrouter"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// Registry returns a registry holding all built-in variants.
func Registry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(types.ProviderLocal, local.NewFromConfig)
	r.Register(types.ProviderOpenAI, openai.NewFromConfig)
	r.Register(types.ProviderOpenRouter, openrouter.NewFromConfig)
	r.Register(types.ProviderGoogle, google.NewFromConfig)
	r.Register(types.ProviderAnthropic, anthropic.NewFromConfig)
	return r
}
