package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/team-of-2/novelize/notes"
)

// TerminalOptions controls Terminal output.
type TerminalOptions struct {
	// Width wraps text; <= 0 means 80.
	Width int
	// Style is a glamour standard style name ("dark", "light", "notty", ...). Empty picks one from the terminal.
	Style string
}

// Terminal renders the ledger's markdown for a terminal.
func Terminal(n notes.Notes, opts TerminalOptions) (string, error) {
	md := Markdown(n)
	if md == "" {
		return "", nil
	}
	width := opts.Width
	if width <= 0 {
		width = 80
	}
	styleOpt := glamour.WithAutoStyle()
	if opts.Style != "" {
		styleOpt = glamour.WithStandardStyle(opts.Style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("Terminal: new renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("Terminal: render: %w", err)
	}
	return out, nil
}

var warningStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#D97706")).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#D97706")).
	Padding(0, 1)

// Warning styles a user-visible warning. An empty message renders nothing.
func Warning(msg string) string {
	if msg == "" {
		return ""
	}
	return warningStyle.Render(msg)
}
