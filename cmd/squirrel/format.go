// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/store"
)

const previewRunes = 100

var (
	idStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	urlStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
)

func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "print JSON instead of text")
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// preview returns the first line of content, cut to previewRunes.
func preview(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	r := []rune(line)
	if len(r) > previewRunes {
		return string(r[:previewRunes-3]) + "..."
	}
	return line
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return tagStyle.Render("#" + strings.Join(tags, " #"))
}

func printNote(w io.Writer, n *store.Note) {
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", idStyle.Render(n.ID), n.CreatedAt.Local().Format("2006-01-02 15:04"), formatTags(n.Tags))
	_, _ = fmt.Fprintf(w, "  %s\n", preview(n.Content))
	if n.Source.URL != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", urlStyle.Render(n.Source.URL))
	}
}

func printNotes(cmd *cobra.Command, notes []*store.Note) error {
	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		if notes == nil {
			notes = []*store.Note{}
		}
		return writeJSON(out, notes)
	}
	if len(notes) == 0 {
		_, err := fmt.Fprintln(out, "No notes found.")
		return err
	}
	for i, n := range notes {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		printNote(out, n)
	}
	return nil
}

func printAnswer(w io.Writer, ans *knowledge.Answer) {
	_, _ = fmt.Fprintln(w, strings.TrimSpace(ans.Text))
	if len(ans.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Sources:")
	for i, src := range ans.Sources {
		line := fmt.Sprintf("  %d. %s", i+1, preview(src.ContentPreview))
		if src.URL != "" {
			line += "  " + urlStyle.Render(src.URL)
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
