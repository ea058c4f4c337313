// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/secrets"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials stored in the OS keyring",
		Long: "List and delete credentials stored under the squirrel service in the operating system keyring. " +
			"Use \"squirrel config set-secret\" to add one.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored credential names",
			RunE:  runSecretList,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a credential by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)

	return cmd
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(secrets.Service)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", k, secrets.KeyringURI(k))
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.Service, name); err != nil {
		if sqerr.IsNotFound(err) {
			return sqerr.Errorf(sqerr.CodeSecretsNotFound, "secret %q not found", name)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
