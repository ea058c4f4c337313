// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated CLI environment: a config file pointing at a fresh
// data directory and an in-memory keyring.
type testEnv struct {
	configPath string
	dataDir    string
	secrets    *mockSecretStore
}

func newTestEnv(t *testing.T, extraYAML string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "squirrel.yaml"),
		dataDir:    filepath.Join(dir, "data"),
		secrets:    newMockSecretStore(),
	}
	yaml := "storage:\n  backend: sqlite\n  data_dir: " + env.dataDir + "\n" +
		"ai:\n  provider: local\n" + extraYAML
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0o600))

	useSecretStore(t, env.secrets)
	return env
}

// run executes the CLI with --config pointing at the environment.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runWithInput(t, nil, args...)
}

func (e *testEnv) runWithInput(t *testing.T, in io.Reader, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.Execute()
	return out.String(), err
}

// mustRun runs the CLI and fails the test on error.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "squirrel %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) readConfig(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile(e.configPath)
	require.NoError(t, err)
	return string(raw)
}
