package config

import (
	"os"
	"strings"
	"unicode"
)

// fallbackOutputName is used when nothing is left of a stylesheet stem.
const fallbackOutputName = "stylesheet"

// colorDisabled honors NO_COLOR (https://no-color.org) and dumb terminals
// before any platform specific detection.
func colorDisabled() bool {
	if v, ok := os.LookupEnv("NO_COLOR"); ok && v != "" {
		return true
	}
	return os.Getenv("TERM") == "dumb"
}

// outputName drops runes rejected by reject and control characters, then
// trims what the platform does not allow at the name edges.
func outputName(stem string, reject func(rune) bool, trim string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == os.PathSeparator || r == os.PathListSeparator || reject(r) {
			return -1
		}
		return r
	}, stem)
	out = strings.TrimLeft(out, ".")
	out = strings.TrimRight(out, trim)
	if out == "" {
		return fallbackOutputName
	}
	return out
}
