// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/squirrel-notes/squirrel/internal/knowledge"
	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
)

// asker is the part of the knowledge service the chat view needs.
type asker interface {
	Answer(ctx context.Context, question string) (*knowledge.Answer, error)
}

type exchange struct {
	question string
	answer   *knowledge.Answer
	err      error
}

type answerMsg struct {
	answer *knowledge.Answer
	err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

// chatModel is the bubbletea model of the interactive question session.
type chatModel struct {
	ctx      context.Context
	notes    asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	waiting  bool
	ready    bool
}

func newChatModel(ctx context.Context, notes asker) chatModel {
	in := textinput.New()
	in.Prompt = "? "
	in.Placeholder = "Ask about your notes, /clear to reset, esc to quit"
	in.CharLimit = 0
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return chatModel{
		ctx:      ctx,
		notes:    notes,
		input:    in,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := boxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-frame-4)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.waiting = false
		if n := len(m.history); n > 0 {
			m.history[n-1].answer = msg.answer
			m.history[n-1].err = msg.err
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.waiting {
		return m, nil
	}
	m.input.SetValue("")

	switch question {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.history = nil
		m.refresh()
		return m, nil
	}

	m.history = append(m.history, exchange{question: question})
	m.waiting = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.notes, question))
}

func askCmd(ctx context.Context, notes asker, question string) tea.Cmd {
	return func() tea.Msg {
		ans, err := notes.Answer(ctx, question)
		return answerMsg{answer: ans, err: err}
	}
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m chatModel) renderHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("No questions yet.")
	}

	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("? "+ex.question) + "\n")
		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render(ex.err.Error()) + "\n")
		case ex.answer != nil:
			b.WriteString(strings.TrimSpace(ex.answer.Text) + "\n")
			for j, src := range ex.answer.Sources {
				line := fmt.Sprintf("  [%d] %s", j+1, preview(src.ContentPreview))
				if src.URL != "" {
					line += " " + src.URL
				}
				b.WriteString(dimStyle.Render(line) + "\n")
			}
		}
	}
	return b.String()
}

func (m chatModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := dimStyle.Render(fmt.Sprintf("%d question(s)  pgup/pgdn to scroll", len(m.history)))
	if m.waiting {
		status = m.spinner.View() + " Thinking..."
	}

	return titleStyle.Render("  Squirrel  ") + "\n" +
		boxStyle.Render(m.viewport.View()) + "\n" +
		promptStyle.Render(m.input.View()) + "\n" +
		status
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about your notes in an interactive session",
		Long:  "Open a full-screen session that answers questions from your notes and lists the sources used.",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"squirrel chat requires an interactive terminal; use \"squirrel ask\" in scripts.")
		return sqerr.New(sqerr.CodeCLISetupFailure, "squirrel chat: not an interactive terminal")
	}

	return withApp(cmd, func(app *App) error {
		p := tea.NewProgram(newChatModel(cmd.Context(), app.Notes), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return sqerr.Wrap(err, sqerr.CodeCLISetupFailure, "chat session")
		}
		return nil
	})
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
