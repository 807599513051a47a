// Package normalize provides the two whitespace canonicalizations used by
// the extraction pipeline. Flat is for single-line contexts (prompt
// construction, bullet cleanup); PreservingLines keeps single newlines as
// section breaks and is used when mining source documents, where line
// boundaries drive bullet detection.
package normalize

import (
	"regexp"
	"strings"
)

var (
	anyWhitespace = regexp.MustCompile(`\s+`)
	newlineRun    = regexp.MustCompile(`\n+`)
	hspaceRun     = regexp.MustCompile(`[ \t]+`)
)

// Flat collapses all whitespace, newlines included, into single spaces and
// trims the result. The output never contains a newline or a run of two or
// more spaces. Empty input yields the empty string.
func Flat(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(anyWhitespace.ReplaceAllString(s, " "))
}

// PreservingLines canonicalizes carriage returns to newlines, collapses
// newline runs to a single newline and horizontal whitespace runs to a
// single space, then trims. Line structure survives, so downstream bullet
// scanning still sees one line per bullet.
func PreservingLines(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r", "\n")
	s = newlineRun.ReplaceAllString(s, "\n")
	s = hspaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
