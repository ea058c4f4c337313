// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

// Package tags turns free-form tag candidates into normalized tags.
//
// A normalized tag is lowercase ASCII letters, digits, underscores and
// single hyphens, 2 to 30 characters long, not purely numeric, and carries
// at least one word outside the stop-word set.
package tags

import (
	"regexp"
	"slices"
	"strings"
)

// MaxTags is the number of tags kept per note.
const MaxTags = 5

const (
	minTagLen = 2
	maxTagLen = 30
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an and are as at be by for from
		has he in is it its of on that the
		to was will with this but they have had
		what when where who which why how or can
		do does did been being am were would could
		should may might must shall not no yes so`) {
		stopwords[w] = struct{}{}
	}
}

var (
	disallowed  = regexp.MustCompile(`[^\w\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
	hyphenRuns  = regexp.MustCompile(`-+`)
	allDigits   = regexp.MustCompile(`^\d+$`)
	modelPrefix = regexp.MustCompile(`(?i)^(tags?:|keywords?:|here are|the tags are):?\s*`)
	listSplit   = regexp.MustCompile(`[,\n]`)
	punctuation = regexp.MustCompile(`[^\w\s]`)
)

// IsStopword reports whether w is in the stop-word set.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// Clean normalizes candidates, drops the ones that are not meaningful tags,
// and removes duplicates keeping the first occurrence.
func Clean(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		tag := normalize(c)
		if !keep(tag) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func keep(tag string) bool {
	if len(tag) < minTagLen || len(tag) > maxTagLen {
		return false
	}
	if allDigits.MatchString(tag) || IsStopword(tag) {
		return false
	}
	for _, w := range strings.Split(tag, "-") {
		if w != "" && !IsStopword(w) {
			return true
		}
	}
	return false
}

// Cap returns at most n tags.
func Cap(tags []string, n int) []string {
	if len(tags) > n {
		return tags[:n]
	}
	return tags
}

// ParseModelOutput splits a model's tag answer into raw candidates,
// dropping a leading "Tags:" style preamble. The result still needs Clean.
func ParseModelOutput(raw string) []string {
	raw = modelPrefix.ReplaceAllString(strings.TrimSpace(raw), "")

	var out []string
	for _, part := range listSplit.Split(raw, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Keywords picks the n most frequent words longer than three characters.
// Ties rank by first occurrence.
func Keywords(content string, n int) []string {
	words := strings.Fields(punctuation.ReplaceAllString(strings.ToLower(content), " "))

	freq := make(map[string]int)
	var order []string
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	slices.SortStableFunc(order, func(a, b string) int { return freq[b] - freq[a] })
	return Cap(order, n)
}

// Extract derives tags from content without a model.
func Extract(content string) []string {
	return Cap(Clean(Keywords(content, MaxTags)), MaxTags)
}

// FromModelOutput cleans a model's tag answer, falling back to Extract when
// nothing usable survives. The boolean reports whether the fallback was used.
func FromModelOutput(raw, content string) ([]string, bool) {
	cleaned := Cap(Clean(ParseModelOutput(raw)), MaxTags)
	if len(cleaned) > 0 {
		return cleaned, false
	}
	return Extract(content), true
}

// Contains reports whether tag is present in list.
func Contains(list []string, tag string) bool {
	return slices.Contains(list, tag)
}
