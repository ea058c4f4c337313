// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/squirrel-notes/squirrel/internal/selection"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from your notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return withApp(cmd, func(app *App) error {
				ans, err := app.Notes.Answer(cmd.Context(), question)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), ans)
				}
				printAnswer(cmd.OutOrStdout(), ans)
				return nil
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

type statusReport struct {
	Selection selection.State         `json:"selection"`
	Provider  provider.ProviderStatus `json:"provider"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active AI provider and storage backend",
		Long: "Resolve the configured provider and store, falling back as needed, " +
			"and report which ones are in use.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *App) error {
				report, err := resolveStatus(cmd.Context(), app)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					return writeJSON(out, report)
				}

				sel := report.Selection
				_, _ = fmt.Fprintf(out, "%-12s %s\n", "Provider:", describeChoice(string(sel.ConfiguredProvider), string(sel.ActiveProvider)))
				_, _ = fmt.Fprintf(out, "%-12s %s\n", "Storage:", describeChoice(string(sel.ConfiguredStore), string(sel.ActiveStore)))
				health := "available"
				if !report.Provider.Available {
					health = "unavailable"
				}
				if report.Provider.Message != "" {
					health += " (" + report.Provider.Message + ")"
				}
				_, err = fmt.Fprintf(out, "%-12s %s\n", "Health:", health)
				return err
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func resolveStatus(ctx context.Context, app *App) (statusReport, error) {
	if _, err := app.Selector.Store(ctx); err != nil {
		return statusReport{}, err
	}
	ps, err := app.Notes.Status(ctx)
	if err != nil {
		return statusReport{}, err
	}
	return statusReport{Selection: app.Selector.State(), Provider: ps}, nil
}

func describeChoice(configured, active string) string {
	if active == "" || active == configured {
		return configured
	}
	return fmt.Sprintf("%s (configured %s, fell back)", active, configured)
}
