package console

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/localtaskrepo/lotar/pkg/tty"
)

// Spinner wraps a terminal spinner that is automatically disabled when
// stderr is not a TTY or accessibility mode is requested.
type Spinner struct {
	inner   *spinner.Spinner
	enabled bool
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	enabled := tty.IsStderrTerminal() && os.Getenv("ACCESSIBLE") == "" && !tty.ColorDisabled()
	s := &Spinner{enabled: enabled}
	if enabled {
		s.inner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.inner.Suffix = " " + message
	}
	return s
}

// Start begins the spinner animation. No-op when disabled.
func (s *Spinner) Start() {
	if s.enabled {
		s.inner.Start()
	}
}

// UpdateMessage changes the message shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	if s.enabled {
		s.inner.Suffix = " " + message
	}
}

// Stop halts the spinner and clears the line. No-op when disabled.
func (s *Spinner) Stop() {
	if s.enabled {
		s.inner.Stop()
	}
}
