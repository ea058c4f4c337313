// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/server"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// keyCheckClient is used to validate provider keys submitted to the API.
var keyCheckClient = &http.Client{Timeout: 10 * time.Second}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the note and question API. The config file is watched, so " +
			"provider and storage changes apply without a restart.",
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(cmd, func(app *App) error {
		cfg, err := app.Config.Raw()
		if err != nil {
			return err
		}
		// Provider and storage credentials are resolved lazily by the
		// selector. A token that cannot be resolved must not disable auth.
		if cfg.Server.APIToken, err = app.Config.ResolveSecret(cfg.Server.APIToken); err != nil {
			return sqerr.Wrap(err, sqerr.CodeCLISetupFailure, "resolving server.api_token")
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Server.Listen = listen
		}

		srv, err := server.New(serverConfig(cfg, app))
		if err != nil {
			return err
		}

		svc, err := server.NewServices(app.Notes, app.Selector, &server.ConfigDeps{
			Config:           app.Config,
			Secrets:          app.Secrets,
			ValidateProvider: server.DefaultProviderKeyValidator(keyCheckClient),
		})
		if err != nil {
			return sqerr.Wrap(err, sqerr.CodeCLISetupFailure, "wiring http services")
		}
		srv.RegisterServices(svc)

		if cfg.Server.APIToken == "" {
			app.Logger.Warn("authentication disabled: server.api_token is not set")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(gctx) })
		g.Go(func() error { return watchConfig(gctx, app) })
		return g.Wait()
	})
}

func serverConfig(cfg *config.Config, app *App) server.Config {
	return server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIToken:    cfg.Server.APIToken,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Version: version,
		Logger:  app.Logger,
	}
}

// watchConfig reloads the config file on change. A watcher that cannot
// start only disables live reload.
func watchConfig(ctx context.Context, app *App) error {
	if err := app.Config.Watch(ctx); err != nil {
		app.Logger.WarnContext(ctx, "config watching disabled", "error", err)
	}
	return nil
}
