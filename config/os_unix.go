//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// OutputBaseName turns a stylesheet file stem into a safe output file base
// name. Hidden names are made visible so compiled output is never skipped
// by directory walkers.
func OutputBaseName(stem string) string {
	return outputName(stem, func(rune) bool { return false }, "")
}

// ColorOutput reports whether level colors may be written to stream.
func ColorOutput(stream *os.File) bool {
	if colorDisabled() {
		return false
	}
	return term.IsTerminal(int(stream.Fd()))
}
