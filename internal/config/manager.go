// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/spf13/viper"
)

// SecretResolver turns a stored credential reference into its value.
// Values that are not references are returned unchanged.
type SecretResolver interface {
	ResolveSecret(value string) (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSecretResolver resolves credential references in Current.
func WithSecretResolver(r SecretResolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithLogger sets the logger used for reload diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager owns the persisted configuration file. Every read layers the
// defaults, then the file contents with pending Set values, then SQUIRREL_
// environment overrides.
//
// Only file contents and Set values are ever written back, so environment
// overrides and defaults never leak into the file.
type Manager struct {
	mu       sync.Mutex
	path     string
	file     *viper.Viper
	pending  map[string]any
	resolver SecretResolver
	logger   *slog.Logger

	listenersMu sync.Mutex
	listeners   []func()
}

// NewManager loads path, which need not exist yet. An empty path keeps the
// configuration in memory; Save then fails.
func NewManager(path string, opts ...Option) (*Manager, error) {
	m := &Manager{path: path, pending: map[string]any{}}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	file, err := m.readFile()
	if err != nil {
		return nil, err
	}
	m.file = file

	if _, err := m.Raw(); err != nil {
		return nil, err
	}
	return m, nil
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) readFile() (*viper.Viper, error) {
	v := viper.New()
	if m.path == "" {
		return v, nil
	}
	v.SetConfigFile(m.path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, sqerr.Wrapf(err, sqerr.CodeConfigLoadReadFailure, "reading config %s", m.path)
	}
	return v, nil
}

// effectiveLocked layers defaults, file contents and environment.
// Requires m.mu.
func (m *Manager) effectiveLocked() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)
	if err := v.MergeConfigMap(m.file.AllSettings()); err != nil {
		return nil, sqerr.Wrap(err, sqerr.CodeConfigParseInvalidFormat, "merging config")
	}
	return v, nil
}

// Raw returns the validated configuration with credential references left
// unresolved. It is safe to display.
func (m *Manager) Raw() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, err := m.effectiveLocked()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Current re-reads the configuration and resolves credential references.
func (m *Manager) Current() (*Config, error) {
	cfg, err := m.Raw()
	if err != nil {
		return nil, err
	}
	if m.resolver == nil {
		return cfg, nil
	}

	dsn, err := m.resolver.ResolveSecret(cfg.Storage.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	cfg.Storage.Postgres.DSN = dsn

	token, err := m.resolver.ResolveSecret(cfg.Server.APIToken)
	if err != nil {
		return nil, err
	}
	cfg.Server.APIToken = token

	for name, pc := range cfg.Providers {
		key, err := m.resolver.ResolveSecret(pc.APIKey)
		if err != nil {
			return nil, sqerr.With(err, sqerr.FieldProvider(name))
		}
		pc.APIKey = key
		cfg.Providers[name] = pc
	}
	return cfg, nil
}

// ResolveSecret resolves one credential reference. Without a resolver the
// value is returned unchanged.
func (m *Manager) ResolveSecret(value string) (string, error) {
	if m.resolver == nil || value == "" {
		return value, nil
	}
	return m.resolver.ResolveSecret(value)
}

// Set changes one setting. The resulting configuration must validate;
// otherwise nothing changes. Listeners are notified on success.
func (m *Manager) Set(key string, value any) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !IsKnownKey(key) {
		return sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue, "unknown config key %q", key)
	}

	m.mu.Lock()
	prev := m.file
	next := viper.New()
	if err := next.MergeConfigMap(prev.AllSettings()); err != nil {
		m.mu.Unlock()
		return sqerr.Wrap(err, sqerr.CodeConfigParseInvalidFormat, "copying config")
	}
	next.Set(key, value)

	m.file = next
	v, err := m.effectiveLocked()
	if err == nil {
		_, err = decode(v)
	}
	if err != nil {
		m.file = prev
		m.mu.Unlock()
		return err
	}
	m.pending[key] = value
	m.mu.Unlock()

	m.notify()
	return nil
}

// Save writes the file contents and pending sets to Path with 0600
// permissions.
func (m *Manager) Save() error {
	if m.path == "" {
		return sqerr.New(sqerr.CodeConfigWriteFailure, "no config file path")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeConfigWriteFailure, "creating config directory for %s", m.path)
	}
	if err := m.file.WriteConfigAs(m.path); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeConfigWriteFailure, "writing config %s", m.path)
	}
	if err := os.Chmod(m.path, 0o600); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeConfigWriteFailure, "restricting permissions of %s", m.path)
	}
	m.pending = map[string]any{}
	return nil
}

// Reload re-reads the file, keeping unsaved Set values, and notifies
// listeners. An invalid file leaves the previous configuration in place.
func (m *Manager) Reload() error {
	m.mu.Lock()
	file, err := m.readFile()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	for k, v := range m.pending {
		file.Set(k, v)
	}

	prev := m.file
	m.file = file
	v, err := m.effectiveLocked()
	if err == nil {
		_, err = decode(v)
	}
	if err != nil {
		m.file = prev
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.notify()
	return nil
}

// OnChange registers fn to run after every successful Set or Reload.
func (m *Manager) OnChange(fn func()) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

func (m *Manager) notify() {
	m.listenersMu.Lock()
	listeners := append([]func(){}, m.listeners...)
	m.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Watch reloads the configuration whenever the file changes on disk, until
// ctx is done. Editors that replace the file atomically are handled by
// watching the parent directory.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		return sqerr.New(sqerr.CodeConfigLoadReadFailure, "no config file to watch")
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeConfigLoadReadFailure, "creating config directory %s", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sqerr.Wrap(err, sqerr.CodeConfigLoadReadFailure, "creating config watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return sqerr.Wrapf(err, sqerr.CodeConfigLoadReadFailure, "watching %s", dir)
	}

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				m.logger.WarnContext(ctx, "config reload failed; keeping previous config",
					"path", m.path, "error", err)
				continue
			}
			m.logger.InfoContext(ctx, "config reloaded", "path", m.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.WarnContext(ctx, "config watcher error", "error", err)
		}
	}
}
