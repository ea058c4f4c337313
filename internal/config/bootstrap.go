// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

//go:embed squirrel.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/squirrel/squirrel.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", sqerr.Wrap(err, sqerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "squirrel", "squirrel.yaml"), nil
}

// BootstrapConfig writes the default commented config to path, or to
// DefaultConfigPath when path is empty, unless the file already exists.
// It returns the path written, or "" when nothing was written. Failures are
// logged at debug level and otherwise ignored.
func BootstrapConfig(path string) string {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			slog.Debug("skipping config bootstrap", "error", err)
			return ""
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		return ""
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", path, "error", err)
		return ""
	}

	slog.Info("created default config", "path", path)
	return path
}
