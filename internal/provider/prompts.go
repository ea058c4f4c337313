// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package provider

import (
	"fmt"
	"strings"
)

// Input limits, in characters, applied before text is sent to a model.
const (
	RemoteTagInputChars     = 1000
	LocalTagInputChars      = 500
	RemoteContextInputChars = 4000
	LocalContextInputChars  = 2000
)

const (
	// TagInstruction asks a model for a comma-separated tag list.
	TagInstruction = "Extract 3-5 meaningful keywords/tags. Output ONLY comma-separated words, no explanations."

	// AnswerInstruction is the system prompt for note-grounded answers.
	AnswerInstruction = "You are a helpful assistant that answers questions based on the user's saved notes. " +
		"Answer naturally and conversationally. If the question is about what content they have, describe it clearly. " +
		"If comparing items, explain the differences. If no relevant information exists, say \"I don't have any notes about that.\" " +
		"Be specific and reference the actual content from the notes."

	// NoResponse is returned when a model produced an empty answer.
	NoResponse = "No response generated."
)

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// TagPrompt is the single-message tag request used by models without a
// separate system role.
func TagPrompt(content string, limit int) string {
	return strings.TrimSuffix(TagInstruction, ".") + ":\n" + Truncate(content, limit)
}

// LocalTagPrompt is the tag request sent to small on-device models.
func LocalTagPrompt(content string) string {
	return "Extract 3-5 meaningful keywords/tags from this text. Output ONLY comma-separated words, no explanations:\n\n" +
		Truncate(content, LocalTagInputChars)
}

// AnswerPrompt is the user message for a remote answer; AnswerInstruction
// goes in the system role.
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf("Context (user's saved notes):\n%s\n\nUser Question: %s",
		Truncate(context, RemoteContextInputChars), question)
}

// LocalAnswerPrompt is the compact answer request for on-device models.
func LocalAnswerPrompt(question, context string) string {
	return fmt.Sprintf("Answer based on these notes. Be concise. If not in notes, say \"No info found.\"\n\nNotes:\n%s\n\nQ: %s\nA:",
		Truncate(context, LocalContextInputChars), question)
}

// CompletionPrompt prefixes prompt with the optional context.
func CompletionPrompt(prompt, context string) string {
	if context == "" {
		return prompt
	}
	return "Context: " + context + "\n\n" + prompt
}

// ContextSystemPrompt is the system message carrying completion context, or
// "" when there is none.
func ContextSystemPrompt(context string) string {
	if context == "" {
		return ""
	}
	return "Context: " + context
}
