package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Out and Err receive the one-line status messages.
var (
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr
)

// SetColorMode picks the lipgloss color profile: "always", "never", or
// "auto" (color only when stdout is a terminal).
func SetColorMode(mode string) {
	switch mode {
	case "always":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		if !isTTY(os.Stdout) {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	}
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func OK(msg string)   { fmt.Fprintln(Out, current.Success.Render(current.SymDone+" "+msg)) }
func Fail(msg string) { fmt.Fprintln(Err, current.Error.Render(symCross+" "+msg)) }

// Hint prints a muted follow-up line on Err.
func Hint(msg string) { fmt.Fprintln(Err, current.Muted.Render(msg)) }

const symCross = "✖"

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool { return isTTY(os.Stdout) }
