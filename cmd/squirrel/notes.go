// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	"github.com/squirrel-notes/squirrel/internal/store"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

func newSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [text|-]",
		Short: "Save a note",
		Long:  "Save text as a note. With no argument or \"-\" the text is read from stdin.",
		Example: `  squirrel save "Postgres partial indexes skip NULL rows"
  pbpaste | squirrel save --title "Release checklist"`,
		RunE: runSave,
	}
	cmd.Flags().String("title", "", "title of the page the text came from")
	cmd.Flags().String("url", "", "address of the page the text came from")
	addJSONFlag(cmd)
	return cmd
}

func runSave(cmd *cobra.Command, args []string) error {
	content, err := readContent(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")
	url, _ := cmd.Flags().GetString("url")

	return withApp(cmd, func(app *App) error {
		note, err := app.Notes.Capture(cmd.Context(), knowledge.CaptureInput{
			Content: content,
			Source:  store.Source{Title: title, URL: url},
		})
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), note)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n", note.ID, formatTags(note.Tags))
		return err
	})
}

// readContent joins args, or reads r when args are empty or a lone "-".
func readContent(r io.Reader, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", sqerr.Wrap(err, sqerr.CodeCLIInputInvalid, "reading stdin")
		}
		return string(raw), nil
	}
	return strings.Join(args, " "), nil
}

func newClipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clip <video-id>",
		Short: "Save a moment of a video",
		Long: "Save a video moment as a note. The transcript, when given, is what gets " +
			"tagged and matched against questions.",
		Example: `  squirrel clip dQw4w9WgXcQ --at 1:15 --title "Intro to indexes" --transcript "a B-tree keeps keys sorted"`,
		Args:    cobra.ExactArgs(1),
		RunE:    runClip,
	}
	cmd.Flags().String("at", "0", "offset into the video: seconds, m:ss or h:mm:ss")
	cmd.Flags().String("title", "", "video title (required)")
	cmd.Flags().String("channel", "", "channel name")
	cmd.Flags().String("thumbnail", "", "thumbnail address")
	cmd.Flags().String("transcript", "", "transcript excerpt; \"-\" reads stdin")
	_ = cmd.MarkFlagRequired("title")
	addJSONFlag(cmd)
	return cmd
}

func runClip(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetString("at")
	offset, err := parseOffset(at)
	if err != nil {
		return err
	}

	clip := knowledge.VideoClip{VideoID: args[0], OffsetSeconds: offset}
	clip.Title, _ = cmd.Flags().GetString("title")
	clip.Channel, _ = cmd.Flags().GetString("channel")
	clip.Thumbnail, _ = cmd.Flags().GetString("thumbnail")
	clip.Transcript, _ = cmd.Flags().GetString("transcript")
	if clip.Transcript == "-" {
		if clip.Transcript, err = readContent(cmd.InOrStdin(), nil); err != nil {
			return err
		}
	}

	return withApp(cmd, func(app *App) error {
		note, err := app.Notes.CaptureVideo(cmd.Context(), clip)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), note)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n  %s\n", note.ID, formatTags(note.Tags), note.Source.URL)
		return err
	})
}

// parseOffset accepts plain seconds or colon-separated m:ss and h:mm:ss.
func parseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, sqerr.Errorf(sqerr.CodeCLIInputInvalid, "invalid offset %q", s)
	}

	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, sqerr.Errorf(sqerr.CodeCLIInputInvalid, "invalid offset %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find notes containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				notes, err := app.Notes.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return printNotes(cmd, notes)
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newRecentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently saved notes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 1 {
				return sqerr.New(sqerr.CodeCLIInputInvalid, "--limit must be at least 1")
			}
			return withApp(cmd, func(app *App) error {
				notes, err := app.Notes.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printNotes(cmd, notes)
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "number of notes to show")
	addJSONFlag(cmd)
	return cmd
}

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags [tag]",
		Short: "List tags, or the notes carrying a tag",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				if len(args) == 1 {
					notes, err := app.Notes.ByTag(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printNotes(cmd, notes)
				}

				tags, err := app.Notes.Tags(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					if tags == nil {
						tags = []string{}
					}
					return writeJSON(out, tags)
				}
				if len(tags) == 0 {
					_, err = fmt.Fprintln(out, "No tags yet.")
					return err
				}
				for _, t := range tags {
					_, _ = fmt.Fprintln(out, t)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newRetagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retag <id> <tag>...",
		Short: "Replace the tags of a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				note, err := app.Notes.UpdateTags(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Tagged %s %s\n", note.ID, formatTags(note.Tags))
				return err
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				var errs []error
				for _, id := range args {
					if err := app.Notes.Delete(cmd.Context(), id); err != nil {
						errs = append(errs, err)
						continue
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return sqerr.Join(errs...)
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every note",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return sqerr.New(sqerr.CodeCLIInputInvalid, "refusing to delete every note without --yes")
			}
			return withApp(cmd, func(app *App) error {
				n, err := app.Notes.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d notes\n", n)
				return err
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deleting every note")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *App) error {
				note, err := app.Notes.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if wantJSON(cmd) {
					return writeJSON(out, note)
				}
				_, _ = fmt.Fprintf(out, "%s  %s  %s\n", idStyle.Render(note.ID),
					note.CreatedAt.Local().Format("2006-01-02 15:04"), formatTags(note.Tags))
				if note.Source.Title != "" {
					_, _ = fmt.Fprintf(out, "%s\n", note.Source.Title)
				}
				if note.Source.URL != "" {
					_, _ = fmt.Fprintf(out, "%s\n", urlStyle.Render(note.Source.URL))
				}
				_, err = fmt.Fprintf(out, "\n%s\n", note.Content)
				return err
			})
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> [text|-]",
		Short: "Replace the content of a note",
		Long:  "Replace a note's content and derive fresh tags and embedding. With no text or \"-\" the text is read from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd, func(app *App) error {
				note, err := app.Notes.UpdateContent(cmd.Context(), args[0], content)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", note.ID, formatTags(note.Tags))
				return err
			})
		},
	}
}

func newReembedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Re-embed notes saved with another embedding model",
		Long: "Recompute the embedding of every note that was not embedded by the active provider's model, " +
			"so questions are matched against vectors of a single model. Run it after switching providers.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return withApp(cmd, func(app *App) error {
				res, err := app.Notes.Reembed(cmd.Context(), all)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				w := cmd.OutOrStdout()
				if _, err := fmt.Fprintf(w, "Re-embedded %d of %d notes with %s\n", res.Reembedded, res.Checked, res.Model); err != nil {
					return err
				}
				if res.Degraded > 0 {
					_, err = fmt.Fprintf(w, "%d notes skipped: the embedding model was unreachable\n", res.Degraded)
				}
				return err
			})
		},
	}
	cmd.Flags().Bool("all", false, "re-embed every note, not only stale ones")
	addJSONFlag(cmd)
	return cmd
}
