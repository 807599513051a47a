// Package criteria mines acceptance-criteria bullets out of raw source
// documents at dataset-preparation time. It is distinct from the inference
// recovery in package extract: it runs over the input corpus, not over
// model output, and only trusts explicit structure.
package criteria

import (
	"regexp"
	"strings"

	"github.com/datar-psa/storyextract/normalize"
)

var (
	header       = regexp.MustCompile(`(?is)acceptance criteria\s*[:\-]\s*(.+)`)
	periodBreak  = regexp.MustCompile(`\.\s+`)
	lineBreak    = regexp.MustCompile(`[\n\r]+`)
	bulletPrefix = regexp.MustCompile(`^\s*[-*\d.)]+\s*`)
	bulletLine   = regexp.MustCompile(`(?m)^[ \t]*[-*\x{2022}]\s*(.+)$`)
)

// Mine returns the acceptance criteria found in source, in document order.
// It first captures everything after an explicit "Acceptance Criteria:"
// header, splitting the tail on line breaks and on sentence boundaries and
// stripping leading bullet markers. If the header yields nothing it falls
// back to collecting bullet lines anywhere in the text.
//
// A third pass that flagged any line containing must/should/will/able-to
// is intentionally absent: it marked ordinary narrative sentences as
// criteria, so mining stays limited to explicit headers and bullets.
//
// The result may be empty; Mine never fails.
func Mine(source string) []string {
	acs := []string{}
	if source == "" {
		return acs
	}

	if m := header.FindStringSubmatch(source); m != nil {
		for _, part := range splitFragments(m[1]) {
			p := strings.TrimSpace(bulletPrefix.ReplaceAllString(part, ""))
			if p != "" {
				acs = append(acs, p)
			}
		}
	}

	if len(acs) == 0 {
		for _, m := range bulletLine.FindAllStringSubmatch(source, -1) {
			if b := normalize.Flat(m[1]); b != "" {
				acs = append(acs, b)
			}
		}
	}

	return acs
}

// splitFragments breaks a header tail on newlines and after sentence-ending
// periods, both applying at once so every boundary yields a fragment.
// Periods stay attached to their fragment; the surrounding whitespace is
// consumed.
func splitFragments(tail string) []string {
	return lineBreak.Split(periodBreak.ReplaceAllString(tail, ".\n"), -1)
}
