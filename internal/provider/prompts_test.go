// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider_test

import (
	"strings"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/provider"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", provider.Truncate("abc", 0))
	assert.Equal(t, "abc", provider.Truncate("abc", 5))
	assert.Equal(t, "ab", provider.Truncate("abc", 2))
	assert.Equal(t, "héé", provider.Truncate("héééé", 3), "counts runes, not bytes")
}

func TestTagPrompts_TruncateContent(t *testing.T) {
	long := strings.Repeat("x", 2000)

	remote := provider.TagPrompt(long, provider.RemoteTagInputChars)
	assert.True(t, strings.HasPrefix(remote, "Extract 3-5 meaningful keywords/tags. Output ONLY comma-separated words, no explanations:\n"))
	assert.Equal(t, provider.RemoteTagInputChars, strings.Count(remote, "x"))

	local := provider.LocalTagPrompt(long)
	assert.Contains(t, local, "from this text")
	assert.Equal(t, provider.LocalTagInputChars, strings.Count(local, "x"))
}

func TestAnswerPrompts(t *testing.T) {
	ctx := strings.Repeat("n", 5000)

	remote := provider.AnswerPrompt("what did I save?", ctx)
	assert.True(t, strings.HasPrefix(remote, "Context (user's saved notes):\n"))
	assert.True(t, strings.HasSuffix(remote, "\n\nUser Question: what did I save?"))
	assert.Equal(t, provider.RemoteContextInputChars, strings.Count(remote, "n"))

	local := provider.LocalAnswerPrompt("q?", "notes here")
	assert.Equal(t, "Answer based on these notes. Be concise. If not in notes, say \"No info found.\"\n\nNotes:\nnotes here\n\nQ: q?\nA:", local)
}

func TestCompletionPrompt(t *testing.T) {
	assert.Equal(t, "hello", provider.CompletionPrompt("hello", ""))
	assert.Equal(t, "Context: facts\n\nhello", provider.CompletionPrompt("hello", "facts"))
	assert.Equal(t, "", provider.ContextSystemPrompt(""))
	assert.Equal(t, "Context: facts", provider.ContextSystemPrompt("facts"))
}
