// Package term formats conversation output and status lines for the
// terminal.
package term

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Style is fixed at startup and handed to everything that prints.
type Style struct {
	enabled   bool
	system    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	reply     lipgloss.Style
}

// ColorEnabled reports whether ANSI styling should be used for f: NO_COLOR
// must be absent (any value, even empty, disables colour) and f must be a
// terminal. lookupEnv is normally os.LookupEnv.
func ColorEnabled(lookupEnv func(string) (string, bool), f *os.File) bool {
	if _, ok := lookupEnv("NO_COLOR"); ok {
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NewStyle(enabled bool) Style {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)

	return Style{
		enabled:   enabled,
		system:    r.NewStyle().Foreground(lipgloss.Color("8")),
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		reply:     r.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

func (s Style) System(text string) string    { return s.render(s.system, text) }
func (s Style) User(text string) string      { return s.render(s.user, text) }
func (s Style) Assistant(text string) string { return s.render(s.assistant, text) }
func (s Style) Reply(text string) string     { return s.render(s.reply, text) }

func (s Style) render(st lipgloss.Style, text string) string {
	if !s.enabled || text == "" {
		return text
	}
	return st.Render(text)
}
