// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := sqerr.New(
		sqerr.CodeConfigValidateInvalidValue,
		"invalid provider configuration",
		sqerr.FieldNoteID("n-123"),
		sqerr.Field("provider", "openai"),
	)

	require.Error(t, err)
	assert.Equal(t, sqerr.CodeConfigValidateInvalidValue, sqerr.CodeOf(err))
	assert.True(t, sqerr.HasCode(err, sqerr.CodeConfigValidateInvalidValue))

	fields := sqerr.FieldsOf(err)
	assert.Equal(t, "n-123", fields["note_id"])
	assert.Equal(t, "openai", fields["provider"])
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := sqerr.Errorf(sqerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, sqerr.CodeStoreDatabaseFailure, sqerr.CodeOf(err))
	assert.Contains(t, err.Error(), "write failed")
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf / With
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("row missing")
	err := sqerr.Wrap(root, sqerr.CodeStoreNoteNotFound, "loading note", sqerr.FieldNoteID("n-42"))

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.True(t, sqerr.IsNotFound(err))
	assert.Equal(t, "n-42", sqerr.FieldsOf(err)["note_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, sqerr.Wrap(nil, sqerr.CodeServerInternalFailure, "ignored"))
	assert.NoError(t, sqerr.Wrapf(nil, sqerr.CodeServerInternalFailure, "ignored %s", "arg"))
	assert.NoError(t, sqerr.With(nil, sqerr.FieldProvider("x")))
}

func TestWrapfFormatsAndPreservesChain(t *testing.T) {
	root := stderrors.New("timeout")
	err := sqerr.Wrapf(root, sqerr.CodeProviderUpstreamFailure, "calling %s model %s", "openai", "gpt-4o-mini")

	assert.ErrorIs(t, err, root)
	assert.True(t, sqerr.IsUpstreamFailure(err))
	assert.Contains(t, err.Error(), "calling openai model gpt-4o-mini")
}

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := sqerr.New(sqerr.CodeProviderConfigNotConfigured, "missing key")
	withCtx := sqerr.With(base, sqerr.FieldProvider("google"))

	assert.Equal(t, sqerr.CodeProviderConfigNotConfigured, sqerr.CodeOf(withCtx))
	assert.Equal(t, "google", sqerr.FieldsOf(withCtx)["provider"])
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	enriched := sqerr.With(stderrors.New("something broke"), sqerr.FieldBackend("sqlite"))
	assert.Equal(t, sqerr.CodeServerInternalFailure, sqerr.CodeOf(enriched))
	assert.Equal(t, "sqlite", sqerr.FieldsOf(enriched)["backend"])
}

func TestCodeOfReturnsInnermostCodedError(t *testing.T) {
	inner := sqerr.New(sqerr.CodeStoreNoteNotFound, "gone")
	outer := sqerr.Wrap(inner, sqerr.CodeKnowledgeCaptureFailure, "capture")

	assert.Equal(t, sqerr.CodeStoreNoteNotFound, sqerr.CodeOf(outer))
	assert.Equal(t, sqerr.Code(""), sqerr.CodeOf(nil))
	assert.Equal(t, sqerr.Code(""), sqerr.CodeOf(stderrors.New("plain")))
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	outer := sqerr.Wrap(fmt.Errorf("mid: %w", sentinel), sqerr.CodeServerInternalFailure, "handler")
	assert.ErrorIs(t, outer, sentinel)
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := sqerr.New(sqerr.CodeStoreDatabaseFailure, "boom",
		sqerr.Field("", "dropped"),
		sqerr.FieldBackend("postgres"),
	)
	fields := sqerr.FieldsOf(err)
	assert.Equal(t, "postgres", fields["backend"])
	assert.NotContains(t, fields, "")
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   sqerr.Code
		status int
		check  func(error) bool
	}{
		{name: "note not found", code: sqerr.CodeStoreNoteNotFound, status: http.StatusNotFound, check: sqerr.IsNotFound},
		{name: "provider not found", code: sqerr.CodeProviderNotFound, status: http.StatusNotFound, check: sqerr.IsNotFound},
		{name: "invalid note", code: sqerr.CodeStoreNoteInvalidInput, status: http.StatusBadRequest, check: sqerr.IsInvalidInput},
		{name: "invalid config value", code: sqerr.CodeConfigValidateInvalidValue, status: http.StatusBadRequest, check: sqerr.IsInvalidInput},
		{name: "capture invalid", code: sqerr.CodeKnowledgeCaptureInvalidInput, status: http.StatusBadRequest, check: sqerr.IsInvalidInput},
		{name: "provider not configured", code: sqerr.CodeProviderConfigNotConfigured, status: http.StatusPreconditionFailed, check: sqerr.IsNotConfigured},
		{name: "store not configured", code: sqerr.CodeStoreConfigNotConfigured, status: http.StatusPreconditionFailed, check: sqerr.IsNotConfigured},
		{name: "capability unavailable", code: sqerr.CodeProviderCapabilityUnavailable, status: http.StatusServiceUnavailable, check: sqerr.IsUnavailable},
		{name: "backend unavailable", code: sqerr.CodeStoreBackendUnavailable, status: http.StatusServiceUnavailable, check: sqerr.IsUnavailable},
		{name: "upstream failure", code: sqerr.CodeProviderUpstreamFailure, status: http.StatusBadGateway, check: sqerr.IsUpstreamFailure},
		{name: "internal", code: sqerr.CodeServerInternalFailure, status: http.StatusInternalServerError, check: func(err error) bool { return !sqerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sqerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, sqerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	for _, err := range []error{nil, stderrors.New("plain"), sqerr.New(sqerr.CodeStoreDatabaseFailure, "db")} {
		assert.False(t, sqerr.IsNotFound(err))
		assert.False(t, sqerr.IsNotConfigured(err))
		assert.False(t, sqerr.IsUnavailable(err))
		assert.False(t, sqerr.IsInvalidInput(err))
		assert.False(t, sqerr.IsUpstreamFailure(err))
	}
	assert.Equal(t, http.StatusInternalServerError, sqerr.HTTPStatus(nil))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := sqerr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, sqerr.CodeServerInternalFailure, sqerr.CodeOf(joined))
}
