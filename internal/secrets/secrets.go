// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package secrets keeps credentials out of the config file. Config values of
// the form keyring://service/key are resolved through a Store at read time.
package secrets

import "github.com/squirrel-notes/squirrel/pkg/types"

// Service is the keyring service Squirrel stores its credentials under.
const Service = "squirrel"

// PostgresDSNKey holds the remote backend's connection string.
const PostgresDSNKey = "postgres-dsn"

// APITokenKey holds the bearer token the HTTP API requires.
const APITokenKey = "api-token"

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error
	// Retrieve fails with a not_found code when the key does not exist.
	Retrieve(service, key string) (string, error)
	// Delete fails with a not_found code when the key does not exist.
	Delete(service, key string) error
	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// ProviderKey returns the keyring key holding provider's API key.
func ProviderKey(provider types.AIProvider) string {
	return string(provider) + "-api-key"
}
