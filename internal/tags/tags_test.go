// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package tags_test

import (
	"strings"
	"testing"

	"github.com/squirrel-notes/squirrel/internal/tags"
	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"punctuation and spaces", []string{"Machine Learning!"}, []string{"machine-learning"}},
		{"stop word and digits dropped", []string{"the", "2024", "AI"}, []string{"ai"}},
		{"duplicates keep first", []string{"go", "Go", "GO!"}, []string{"go"}},
		{"hyphen runs collapse", []string{"  deep -- learning  "}, []string{"deep-learning"}},
		{"leading and trailing hyphens trimmed", []string{"-rust-"}, []string{"rust"}},
		{"all stop-word phrase dropped", []string{"of the"}, []string{}},
		{"phrase with one content word kept", []string{"state of the art"}, []string{"state-of-the-art"}},
		{"too short", []string{"x"}, []string{}},
		{"too long", []string{strings.Repeat("a", 31)}, []string{}},
		{"exactly thirty", []string{strings.Repeat("b", 30)}, []string{strings.Repeat("b", 30)}},
		{"underscore kept", []string{"snake_case"}, []string{"snake_case"}},
		{"empty input", nil, []string{}},
		{"only symbols", []string{"!!!", "..."}, []string{}},
		{"stop words and repeats collapse", []string{"The", "a-a", "cats!!", "cats", "cats"}, []string{"cats"}},
		{"numbers dropped, short word kept", []string{"123", "ab"}, []string{"ab"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tags.Clean(tt.in))
		})
	}
}

func TestClean_Deterministic(t *testing.T) {
	in := []string{"Kubernetes", "docker", "the", "k8s", "Docker"}
	assert.Equal(t, tags.Clean(in), tags.Clean(in))
	assert.Equal(t, []string{"kubernetes", "docker", "k8s"}, tags.Clean(in))
}

func TestClean_Idempotent(t *testing.T) {
	once := tags.Clean([]string{"Machine Learning!", "Vector DB", "2024"})
	assert.Equal(t, once, tags.Clean(once))
}

func TestParseModelOutput(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"go, concurrency, channels", []string{"go", "concurrency", "channels"}},
		{"Tags: rust, memory", []string{"rust", "memory"}},
		{"keywords: a\nb\n\nc", []string{"a", "b", "c"}},
		{"Here are: x, y", []string{"x", "y"}},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, tags.ParseModelOutput(tt.raw))
		})
	}
}

func TestKeywords(t *testing.T) {
	content := "Vector search makes vector retrieval fast. Search vectors, search notes!"
	got := tags.Keywords(content, 3)
	assert.Equal(t, []string{"search", "vector", "makes"}, got)
}

func TestKeywords_SkipsShortWords(t *testing.T) {
	assert.Empty(t, tags.Keywords("a an the go is of", 5))
}

func TestExtract(t *testing.T) {
	got := tags.Extract("Golang channels and goroutines make golang concurrency pleasant. Channels everywhere.")
	assert.LessOrEqual(t, len(got), tags.MaxTags)
	assert.Equal(t, "golang", got[0])
	assert.Contains(t, got, "channels")
}

func TestFromModelOutput_FallsBackWhenNothingSurvives(t *testing.T) {
	got, degraded := tags.FromModelOutput("the, of, 42", "Distributed databases replicate data")
	assert.True(t, degraded)
	assert.Equal(t, tags.Extract("Distributed databases replicate data"), got)

	got, degraded = tags.FromModelOutput("Tags: one thing, two things, three, four, five, six", "")
	assert.False(t, degraded)
	assert.Len(t, got, tags.MaxTags)
}
