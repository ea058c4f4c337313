// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes read domain.component[.operation].reason; classification only looks at the reason.
type Code string

const (
	CodeStoreNoteNotFound        Code = "store.note.not_found"
	CodeStoreNoteInvalidInput    Code = "store.note.invalid_input"
	CodeStoreDatabaseFailure     Code = "store.database.failure"
	CodeStoreBackendUnsupported  Code = "store.backend.unsupported"
	CodeStoreBackendUnavailable  Code = "store.backend.unavailable"
	CodeStoreConfigNotConfigured Code = "store.config.not_configured"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigWriteFailure         Code = "config.write.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeProviderRequestInvalid        Code = "provider.request.invalid"
	CodeProviderResponseInvalid       Code = "provider.response.invalid"
	CodeProviderUpstreamFailure       Code = "provider.upstream.failure"
	CodeProviderNotFound              Code = "provider.registry.not_found"
	CodeProviderConfigNotConfigured   Code = "provider.config.not_configured"
	CodeProviderCapabilityUnavailable Code = "provider.capability.unavailable"
	CodeProviderAllUnavailable        Code = "provider.selection.unavailable"
	CodeProviderKeyInvalid            Code = "provider.key.invalid"
	CodeProviderKeyCheckFailure       Code = "provider.key.upstream.failure"

	CodeSecretsKeyringFailure Code = "secrets.keyring.failure"
	CodeSecretsNotFound       Code = "secrets.keyring.not_found"
	CodeSecretsInvalidInput   Code = "secrets.keyring.invalid_input"

	CodeKnowledgeCaptureInvalidInput Code = "knowledge.capture.invalid_input"
	CodeKnowledgeCaptureFailure      Code = "knowledge.capture.failure"
	CodeKnowledgeAnswerInvalidInput  Code = "knowledge.answer.invalid_input"
	CodeKnowledgeUpdateInvalidInput  Code = "knowledge.update.invalid_input"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
	CodeCLIServerUnavailable Code = "cli.server.unavailable"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldNoteID(value string) Attr {
	return Field("note_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldBackend(value string) Attr {
	return Field("backend", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the innermost code in the chain, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	switch code := oopsErr.Code().(type) {
	case Code:
		return code
	case string:
		return Code(code)
	default:
		return Code(fmt.Sprintf("%v", code))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

// IsNotConfigured reports a Configuration condition: a selected variant lacks credentials.
func IsNotConfigured(err error) bool {
	return reason(CodeOf(err)) == "not_configured"
}

// IsUnavailable reports a capability that cannot run in the current environment.
func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsNotConfigured(err):
		return http.StatusPreconditionFailed
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
