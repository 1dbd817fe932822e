// Package detector inspects the process environment to pick output settings.
package detector

import (
	"os"
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// ColorMode is the user's color preference.
type ColorMode int

const (
	// ColorAuto enables color on terminals and in CI.
	ColorAuto ColorMode = iota
	// ColorAlways forces color.
	ColorAlways
	// ColorNever disables color.
	ColorNever
)

// ParseColorMode converts the --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, zerr.With(zerr.New("invalid color mode"), "value", s)
	}
}

// IsCI reports whether the process runs under a CI service.
func IsCI() bool {
	ci := os.Getenv("CI")
	return ci == "true" || ci == "1"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// UseColor resolves mode for output written to f.
// NO_COLOR wins over auto detection but not over an explicit "always".
func UseColor(mode ColorMode, f *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsCI() || IsTerminal(f)
}
