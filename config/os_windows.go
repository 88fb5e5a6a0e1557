//go:build windows

package config

import (
	"os"
	"slices"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

var reservedDeviceNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// OutputBaseName turns a stylesheet file stem into a safe output file base
// name. Device names get an underscore prefix, trailing dots and spaces are
// dropped since the file system strips them silently.
func OutputBaseName(stem string) string {
	out := outputName(stem, func(r rune) bool { return strings.ContainsRune(`<>":/\|?*`, r) }, ". ")
	dev, _, _ := strings.Cut(out, ".")
	if slices.Contains(reservedDeviceNames, strings.ToUpper(dev)) {
		out = "_" + out
	}
	return out
}

// ColorOutput reports whether level colors may be written to stream. On
// Windows 10 and later it switches the console into VT processing mode.
func ColorOutput(stream *os.File) bool {
	if colorDisabled() || windows.RtlGetVersion().MajorVersion < 10 {
		return false
	}
	if !term.IsTerminal(int(stream.Fd())) {
		return false
	}

	h := windows.Handle(stream.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	if mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING != 0 {
		return true
	}
	return windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING) == nil
}
