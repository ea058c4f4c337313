// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/zalando/go-keyring"
)

// indexSuffix names the entry that records a service's key names, since
// go-keyring cannot enumerate entries.
const indexSuffix = "::keys-index"

// KeyringStore implements Store on the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkEntry(op, service, key string) error {
	if service == "" {
		return sqerr.Errorf(sqerr.CodeSecretsInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return sqerr.Errorf(sqerr.CodeSecretsInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkEntry("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkEntry("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", sqerr.Errorf(sqerr.CodeSecretsNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkEntry("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return sqerr.Errorf(sqerr.CodeSecretsNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

func (s *KeyringStore) List(service string) ([]string, error) {
	if service == "" {
		return nil, sqerr.New(sqerr.CodeSecretsInvalidInput, "secret list: service must not be empty")
	}
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, update func([]string) []string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	keys = update(keys)

	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("failed to remove empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeSecretsKeyringFailure, "saving key index for %s", service)
	}
	return nil
}
