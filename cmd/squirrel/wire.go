// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/provider/builtin"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	"github.com/squirrel-notes/squirrel/internal/selection"
	_ "github.com/squirrel-notes/squirrel/internal/store/postgres" // register postgres backend
	_ "github.com/squirrel-notes/squirrel/internal/store/sqlite"   // register sqlite backend
)

// secretStoreFactory creates the secrets.Store used for keyring references.
// Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// App holds the wired subsystems of one CLI invocation.
type App struct {
	Config   *config.Manager
	Secrets  secrets.Store
	Selector *selection.Selector
	Notes    *knowledge.Service
	Logger   *slog.Logger
}

// WireApp loads the configuration named by cmd's flags and wires the
// selector and knowledge service on top of it. The provider and store are
// resolved lazily on first use.
func WireApp(cmd *cobra.Command) (*App, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(path)

	logger := slog.Default()
	store := secretStoreFactory()
	mgr, err := config.NewManager(path,
		config.WithSecretResolver(secrets.NewResolver(store)),
		config.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	cfg, err := mgr.Raw()
	if err != nil {
		return nil, err
	}

	sel := selection.New(mgr, builtin.Registry(), selection.WithLogger(logger))
	mgr.OnChange(sel.Invalidate)

	limits := qaLimits(cfg)
	notes := knowledge.New(sel, sel, knowledge.Options{
		TopK:            limits.TopK,
		TopicLimit:      limits.TopicLimit,
		MaxContextChars: limits.MaxContextChars,
		Logger:          logger,
	})

	mgr.OnChange(func() {
		cfg, err := mgr.Raw()
		if err != nil {
			logger.Warn("keeping previous qa limits", "error", err)
			return
		}
		notes.SetLimits(qaLimits(cfg))
	})

	return &App{
		Config:   mgr,
		Secrets:  store,
		Selector: sel,
		Notes:    notes,
		Logger:   logger,
	}, nil
}

func qaLimits(cfg *config.Config) knowledge.Limits {
	return knowledge.Limits{
		TopK:            cfg.QA.TopK,
		TopicLimit:      cfg.QA.TopicLimit,
		MaxContextChars: cfg.QA.MaxContextChars,
	}
}

// Close releases the resolved provider and store.
func (a *App) Close() error {
	return a.Selector.Close()
}

// withApp wires an App for the duration of fn.
func withApp(cmd *cobra.Command, fn func(*App) error) error {
	app, err := WireApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Warn("closing backends", "error", err)
		}
	}()
	return fn(app)
}
