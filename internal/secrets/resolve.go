// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package secrets

import (
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// KeyringURI returns the reference to key under Service.
func KeyringURI(key string) string {
	return keyringScheme + Service + "/" + key
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", sqerr.Errorf(sqerr.CodeSecretsInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", sqerr.Errorf(sqerr.CodeSecretsInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// ResolveKeyringURI resolves a keyring:// URI to its secret value. Other
// values are returned unchanged.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "resolving %q", value)
	}
	return secret, nil
}

// Resolver resolves config values against a Store. It satisfies
// config.SecretResolver.
type Resolver struct {
	Store Store
}

// NewResolver returns a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

func (r *Resolver) ResolveSecret(value string) (string, error) {
	return ResolveKeyringURI(r.Store, value)
}
