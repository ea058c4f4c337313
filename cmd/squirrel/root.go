// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/squirrel-notes/squirrel/internal/config"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// NewRootCmd creates the root squirrel command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "squirrel",
		Short: "Squirrel, a personal knowledge store",
		Long: "Squirrel saves snippets of text and video moments, tags and embeds them, " +
			"and answers questions using what you saved.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ~/.config/squirrel/squirrel.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newSaveCmd(),
		newClipCmd(),
		newAskCmd(),
		newChatCmd(),
		newSearchCmd(),
		newShowCmd(),
		newEditCmd(),
		newReembedCmd(),
		newRecentCmd(),
		newTagsCmd(),
		newRetagCmd(),
		newDeleteCmd(),
		newClearCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// globalSettings resolves the persistent flags with the usual precedence:
// flag, then SQUIRREL_ environment variable.
func globalSettings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	for _, key := range []string{"config", "verbose"} {
		if err := v.BindEnv(key); err != nil {
			return nil, sqerr.Wrapf(err, sqerr.CodeCLISetupFailure, "binding %s env", key)
		}
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(key)); err != nil {
			return nil, sqerr.Wrapf(err, sqerr.CodeCLISetupFailure, "binding %s flag", key)
		}
	}
	return v, nil
}

// setupLogging installs a text handler on stderr: Info by default, Debug
// with --verbose.
func setupLogging(cmd *cobra.Command) error {
	v, err := globalSettings(cmd)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

// configPath returns the config file to use. Without --config or
// SQUIRREL_CONFIG the default path is used, and a commented default file is
// written there on first run.
func configPath(cmd *cobra.Command) (string, error) {
	v, err := globalSettings(cmd)
	if err != nil {
		return "", err
	}
	if path := v.GetString("config"); path != "" {
		return path, nil
	}

	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", err
	}
	config.BootstrapConfig(path)
	return path, nil
}
