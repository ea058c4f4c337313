// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package store

// StorageConfig controls which backend the factory builds.
type StorageConfig struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string
	// DataDir holds the local database file.
	DataDir string
	// Postgres is used only by the remote backend.
	Postgres PostgresConfig
}

// PostgresConfig describes the remote relational backend.
type PostgresConfig struct {
	// DSN is the connection string; it is the backend's credential.
	DSN          string
	MaxOpenConns int
}
