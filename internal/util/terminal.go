package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgress reports whether a progress bar should be drawn on stderr.
// Bars are suppressed when output is piped or the logger is quiet.
func ShowProgress() bool {
	return IsTerminal(os.Stderr.Fd()) && !IsQuiet()
}

// ConfigureColors turns off ANSI colors when stderr is not a terminal
func ConfigureColors() {
	SetColors(IsTerminal(os.Stderr.Fd()))
}
