// Package tty centralizes terminal detection for output styling decisions.
package tty

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsStdoutTerminal reports whether stdout is attached to a terminal.
func IsStdoutTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsStderrTerminal reports whether stderr is attached to a terminal.
func IsStderrTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// ColorDisabled reports whether color output should be suppressed,
// honoring the NO_COLOR convention (https://no-color.org).
func ColorDisabled() bool {
	return os.Getenv("NO_COLOR") != ""
}
