// Package output renders CLI results: styled terminal output when
// stdout is a TTY, plain text otherwise, and JSON on request.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// 256-color palette shared by all commands.
const (
	colorAccent    = "45"  // cyan, primary accent
	colorAccentDim = "31"  // dimmed accent for secondary figures
	colorWhite     = "255" // titles
	colorGray      = "245" // labels, paths
	colorDarkGray  = "238" // separators, snippets
	colorRed       = "196" // errors
	colorYellow    = "220" // warnings
	colorGreen     = "114" // success
)

// Styles holds the render styles for one printer.
type Styles struct {
	Title     lipgloss.Style
	Accent    lipgloss.Style
	Label     lipgloss.Style
	Dim       lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Tag       lipgloss.Style
	Relevance lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Accent:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Success:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Tag:       lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccentDim)),
		Relevance: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
	}
}

// PlainStyles returns an unstyled set for pipes and NO_COLOR.
func PlainStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle(),
		Accent:    lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Success:   lipgloss.NewStyle(),
		Warning:   lipgloss.NewStyle(),
		Error:     lipgloss.NewStyle(),
		Tag:       lipgloss.NewStyle(),
		Relevance: lipgloss.NewStyle(),
	}
}

// StylesFor picks styles for a writer: colored only when the writer is
// a real terminal and NO_COLOR is unset.
func StylesFor(w io.Writer) Styles {
	if noColorSet() || !IsTTY(w) {
		return PlainStyles()
	}
	return DefaultStyles()
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColorSet() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
