// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/squirrel-notes/squirrel/internal/config"
	"github.com/squirrel-notes/squirrel/internal/secrets"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
)

const redacted = "********"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigSetSecretCmd(),
		newConfigPathCmd(),
	)
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with credentials masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *App) error {
				cfg, err := app.Config.Raw()
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(redactConfig(cfg))
				if err != nil {
					return sqerr.Wrap(err, sqerr.CodeCLIRequestFailure, "rendering config")
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

// redactConfig masks credentials. Keyring references carry no secret and
// are shown as-is.
func redactConfig(cfg *config.Config) *config.Config {
	c := *cfg
	c.Storage.Postgres.DSN = redactValue(c.Storage.Postgres.DSN)
	c.Server.APIToken = redactValue(c.Server.APIToken)
	c.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		pc.APIKey = redactValue(pc.APIKey)
		c.Providers[name] = pc
	}
	return &c
}

func redactValue(v string) string {
	if v == "" || secrets.IsKeyringURI(v) {
		return v
	}
	return redacted
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save the file",
		Long: "Change one setting, e.g. \"ai.provider openai\" or \"qa.top_k 8\". " +
			"Values are parsed as YAML, so numbers, booleans and [lists] keep their type. " +
			"Use \"config set-secret\" for credentials.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.ToLower(args[0])
			if secretKeyName(key) != "" {
				return sqerr.Errorf(sqerr.CodeCLIInputInvalid,
					"%s holds a credential; use \"squirrel config set-secret %s\"", key, key)
			}
			value, err := parseValue(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *App) error {
				if err := app.Config.Set(key, value); err != nil {
					return err
				}
				if err := app.Config.Save(); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)
				return err
			})
		},
	}
}

// parseValue decodes a command-line value as a YAML scalar or flow list.
func parseValue(raw string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeCLIInputInvalid, "parsing value %q", raw)
	}
	if v == nil {
		return raw, nil
	}
	return v, nil
}

func newConfigSetSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-secret <key> [value|-]",
		Short: "Store a credential in the OS keyring and reference it from the config",
		Long: "Store a credential in the OS keyring and point the config key at it with a " +
			"keyring:// reference, so the file never holds the secret. Without a value, or " +
			"with \"-\", the secret is read from stdin.\n\n" +
			"Keys: providers.<name>.api_key, storage.postgres.dsn, server.api_token.",
		Example: `  squirrel config set-secret providers.openai.api_key
  echo "$DATABASE_URL" | squirrel config set-secret storage.postgres.dsn -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runConfigSetSecret,
	}
}

func runConfigSetSecret(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	name := secretKeyName(key)
	if name == "" {
		return sqerr.Errorf(sqerr.CodeCLIInputInvalid, "%s is not a credential setting", key)
	}

	value, err := readContent(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return sqerr.New(sqerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	return withApp(cmd, func(app *App) error {
		if err := app.Secrets.Store(secrets.Service, name, value); err != nil {
			return err
		}
		if err := app.Config.Set(key, secrets.KeyringURI(name)); err != nil {
			return err
		}
		if err := app.Config.Save(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the keyring as %s\n", key, secrets.KeyringURI(name))
		return err
	})
}

// secretKeyName returns the keyring entry backing a credential setting, or
// "" when key is not one.
func secretKeyName(key string) string {
	switch key {
	case "storage.postgres.dsn":
		return secrets.PostgresDSNKey
	case "server.api_token":
		return secrets.APITokenKey
	}
	parts := strings.Split(key, ".")
	if len(parts) == 3 && parts[0] == "providers" && parts[2] == "api_key" {
		p, err := types.ParseAIProvider(parts[1])
		if err != nil || p == types.ProviderLocal {
			return ""
		}
		return secrets.ProviderKey(p)
	}
	return ""
}
