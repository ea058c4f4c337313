// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

// doctorHTTPClient validates provider keys. Overridden in tests.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the config file, the keyring, provider API keys, the storage backend and a running server.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "server address to check (default server.listen)")

	return cmd
}

type doctorCheck struct {
	name string
	fn   func(ctx context.Context) string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(app *App) error {
		ctx := cmd.Context()
		// Unresolvable keyring references are reported rather than fatal.
		cfg, resolveErr := app.Config.Current()
		if resolveErr != nil {
			var err error
			if cfg, err = app.Config.Raw(); err != nil {
				return err
			}
		}
		addr, _ := cmd.Flags().GetString("address")
		if addr == "" {
			addr = cfg.Server.Listen
		}

		checks := []doctorCheck{
			{"Binary", func(context.Context) string { return checkBinary() }},
			{"Config", func(context.Context) string { return checkConfig(app.Config.Path(), cfg, resolveErr) }},
			{"Keyring", func(context.Context) string { return checkKeyring(app.Secrets) }},
		}
		for _, p := range configuredProviders(cfg) {
			checks = append(checks, doctorCheck{
				name: "Provider " + string(p),
				fn:   func(ctx context.Context) string { return checkProviderKey(ctx, p, cfg.Provider(p)) },
			})
		}
		checks = append(checks,
			doctorCheck{"Storage", func(ctx context.Context) string { return checkStorage(ctx, app) }},
			doctorCheck{"Server", func(ctx context.Context) string { return checkServer(ctx, addr, cfg.Server.APIToken) }},
		)

		w := cmd.OutOrStdout()
		for _, c := range checks {
			if _, err := fmt.Fprintf(w, "%-22s %s\n", c.name+":", c.fn(ctx)); err != nil {
				return err
			}
		}
		return nil
	})
}

func checkBinary() string {
	return fmt.Sprintf("squirrel %s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(path string, cfg *config.Config, resolveErr error) string {
	if resolveErr != nil {
		return fmt.Sprintf("%s: cannot resolve credentials: %s", path, resolveErr)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Sprintf("%s has %d problem(s): %v", path, len(errs), errs[0])
	}
	return fmt.Sprintf("loaded from %s", path)
}

func checkKeyring(store secrets.Store) string {
	keys, err := store.List(secrets.Service)
	if err != nil {
		return fmt.Sprintf("unavailable: %s", err)
	}
	return fmt.Sprintf("ok, %d secret(s) stored", len(keys))
}

// configuredProviders lists the selected provider plus every provider with
// an API key, without duplicates.
func configuredProviders(cfg *config.Config) []types.AIProvider {
	seen := map[types.AIProvider]bool{}
	var out []types.AIProvider
	add := func(p types.AIProvider) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(cfg.AIProvider())
	for _, p := range []types.AIProvider{types.ProviderOpenAI, types.ProviderGoogle, types.ProviderAnthropic, types.ProviderOpenRouter} {
		if cfg.Provider(p).APIKey != "" {
			add(p)
		}
	}
	return out
}

func checkProviderKey(ctx context.Context, p types.AIProvider, pc config.ProviderConfig) string {
	if p == types.ProviderLocal {
		if pc.Endpoint == "" {
			return "on-device (hash embeddings, no model endpoint)"
		}
		return "model endpoint " + pc.Endpoint
	}
	if pc.APIKey == "" {
		return "no API key (falls back to local)"
	}
	if secrets.IsKeyringURI(pc.APIKey) {
		return "API key reference " + pc.APIKey + " not found in the keyring"
	}

	err := provider.ValidateKeyAt(ctx, doctorHTTPClient, p, pc.APIKey, pc.Endpoint)
	switch {
	case err == nil:
		return "API key accepted"
	case sqerr.HasCode(err, sqerr.CodeProviderKeyInvalid):
		return "API key rejected"
	default:
		return fmt.Sprintf("could not verify: %s", err)
	}
}

func checkStorage(ctx context.Context, app *App) string {
	if _, err := app.Selector.Store(ctx); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	state := app.Selector.State()
	return describeChoice(string(state.ConfiguredStore), string(state.ActiveStore))
}

func checkServer(ctx context.Context, addr, token string) string {
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := newAPIClient(addr, token).getJSON(ctx, "/health", &body); err != nil {
		if sqerr.HasCode(err, sqerr.CodeCLIServerUnavailable) {
			return fmt.Sprintf("not running at %s (run 'squirrel serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (version %s)", body.Status, addr, body.Version)
}
