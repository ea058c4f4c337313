// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions only logs on Windows, where access is governed by
// ACLs rather than mode bits.
func WarnInsecurePermissions(path string) {
	if path != "" {
		slog.Debug("config permission check not implemented on Windows", "path", path)
	}
}
