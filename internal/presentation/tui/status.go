package tui

import (
	"os"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when it is not a terminal.
func Width(f *os.File, fallback int) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// Palette colors statuses for one output.
type Palette struct {
	profile termenv.Profile
}

// NewPalette detects the color profile of f. Non-terminals get plain text.
func NewPalette(f *os.File) Palette {
	if !IsTTY(f) {
		return Palette{profile: termenv.Ascii}
	}
	return Palette{profile: termenv.NewOutput(f).Profile}
}

// PlainPalette never emits escape sequences.
func PlainPalette() Palette {
	return Palette{profile: termenv.Ascii}
}

// Status renders a run or step status in its color.
func (p Palette) Status(status string) string {
	var color string
	switch status {
	case string(domain.StepCompleted), string(domain.RunFinished):
		color = "#22c55e"
	case string(domain.StepErrored):
		color = "#ef4444"
	case string(domain.StepRunning):
		color = "#eab308"
	default:
		color = "#94a3b8"
	}
	return p.profile.String(status).Foreground(p.profile.Color(color)).Bold().String()
}

// Faint dims secondary text such as IDs.
func (p Palette) Faint(s string) string {
	return p.profile.String(s).Foreground(p.profile.Color("#94a3b8")).String()
}
