// Package extract recovers a structured user-story record from unreliable
// model output. The pipeline is a cascade of strategies, each of which
// reports "no result" rather than failing: Clean strips generation
// artifacts, TryParse attempts a lenient JSON decode, and Components falls
// back to regex and keyword heuristics over the raw text.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/datar-psa/storyextract/api"
)

// eosMarker is the end-of-sequence token the seq2seq decoder sometimes
// leaks into its text output.
const eosMarker = "</s>"

// Clean post-processes raw model output: trims whitespace, removes the
// end-of-sequence marker, and when the output looks like JSON, truncates a
// partially generated object to its last closing brace. Plain-text output
// is returned unchanged so the pattern extractor can take over. Clean never
// fails and is idempotent.
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSpace(strings.ReplaceAll(raw, eosMarker, ""))

	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	if !strings.HasSuffix(raw, "}") {
		if end := strings.LastIndex(raw, "}"); end != -1 {
			raw = raw[:end+1]
		}
	}
	return raw
}

// TryParse attempts a strict JSON object decode of text. On failure it
// applies exactly one repair pass, substituting every single quote with a
// double quote, and retries. A second failure yields (zero record, false):
// unparseable output is an expected outcome here, not an error.
//
// The quote substitution is a knowingly naive heuristic: it corrupts any
// value that legitimately contains an apostrophe ("user's"), which then
// fails the retry and falls through to the pattern extractor.
func TryParse(text string) (api.Record, bool) {
	m, ok := decodeObject(text)
	if !ok {
		m, ok = decodeObject(strings.ReplaceAll(text, "'", `"`))
	}
	if !ok {
		return api.Record{AcceptanceCriteria: []string{}}, false
	}
	return recordFromMap(m), true
}

// decodeObject strictly decodes text into a JSON object. Top-level nulls,
// arrays and scalars do not count: the model's schema is an object.
func decodeObject(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// recordFromMap reads the known fields out of a decoded object. Fields that
// are missing or of the wrong type are treated as absent.
func recordFromMap(m map[string]any) api.Record {
	rec := api.Record{AcceptanceCriteria: []string{}}
	if s, ok := m["actor"].(string); ok {
		rec.Actor = s
	}
	if s, ok := m["action"].(string); ok {
		rec.Action = s
	}
	if s, ok := m["benefit"].(string); ok {
		rec.Benefit = s
	}
	if items, ok := m["acceptance_criteria"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				rec.AcceptanceCriteria = append(rec.AcceptanceCriteria, s)
			}
		}
	}
	return rec
}

// canonicalForm recognizes the "As a X, I want Y so that Z" shape and
// captures actor, action and benefit. First match only; the action capture
// is lazy so the benefit connective is not swallowed, and the benefit stops
// at the first period or end of text.
var canonicalForm = regexp.MustCompile(`(?i)as\s+an?\s+([^,]+),?\s+(?:i\s+)?(?:want|need|would|can|should|must)\s+(?:to\s+)?(.+?)(?:\s+so\s+that\s+|\s+in\s+order\s+to\s+|,?\s+to\s+enable\s+)(.*?)(?:\.|$)`)

// actorKeywords is scanned in order when the canonical form fails; the
// first keyword present as a whole word wins, so list order is the
// tie-break on ambiguous text.
var actorKeywords = []string{
	"user", "admin", "customer", "analyst", "manager",
	"developer", "system", "guest", "employee",
}

var actorKeywordPatterns = func() []*regexp.Regexp {
	pats := make([]*regexp.Regexp, len(actorKeywords))
	for i, kw := range actorKeywords {
		pats[i] = regexp.MustCompile(`\b` + kw + `\b`)
	}
	return pats
}()

// criteriaKeywords flag sentences that read like acceptance criteria.
// Matched as substrings, so short words like "and" deliberately cast a
// wide net.
var criteriaKeywords = []string{
	"given", "when", "then", "and", "scenario",
	"condition", "requirement", "must", "should",
}

var sentenceBoundary = regexp.MustCompile(`[.!?]`)

// Components extracts {actor, action, benefit, acceptance criteria} from
// free-text model output when JSON parsing is unavailable or has failed.
// source is the original story text, consulted when the generated output
// itself is unusable; pass "" when no source is at hand.
//
// Rules apply in a fixed precedence and the first rule to populate a field
// wins; reordering them changes output on ambiguous inputs. Actor has the
// full four-tier fallback; action and benefit are only ever set by the
// canonical-form tiers, an accepted asymmetry of the format. Components
// never fails: total extraction failure yields a record with empty fields.
func Components(rawOutput, source string) api.Record {
	rec := api.Record{AcceptanceCriteria: []string{}}

	raw := strings.ToLower(strings.TrimSpace(rawOutput))

	// Tier 1: canonical story form in the model output.
	if m := canonicalForm.FindStringSubmatch(raw); m != nil {
		rec.Actor = strings.TrimSpace(m[1])
		rec.Action = strings.TrimSpace(m[2])
		rec.Benefit = strings.TrimSpace(m[3])
	}

	// Tier 2: canonical story form in the source text.
	if rec.Actor == "" && source != "" {
		if m := canonicalForm.FindStringSubmatch(strings.ToLower(source)); m != nil {
			rec.Actor = strings.TrimSpace(m[1])
			rec.Action = strings.TrimSpace(m[2])
			rec.Benefit = strings.TrimSpace(m[3])
		}
	}

	// Tier 3: known role keyword in the model output.
	if rec.Actor == "" {
		rec.Actor = firstActorKeyword(raw)
	}

	// Tier 4: known role keyword in the source text.
	if rec.Actor == "" && source != "" {
		rec.Actor = firstActorKeyword(strings.ToLower(source))
	}

	// Sentences that read like acceptance criteria, kept in output order
	// without deduplication.
	if containsAnyKeyword(raw) {
		for _, sentence := range sentenceBoundary.Split(raw, -1) {
			if !containsAnyKeyword(sentence) {
				continue
			}
			if c := strings.TrimSpace(sentence); len(c) > 3 {
				rec.AcceptanceCriteria = append(rec.AcceptanceCriteria, c)
			}
		}
	}

	return rec
}

func firstActorKeyword(text string) string {
	for i, pat := range actorKeywordPatterns {
		if pat.MatchString(text) {
			return actorKeywords[i]
		}
	}
	return ""
}

func containsAnyKeyword(sentence string) bool {
	for _, kw := range criteriaKeywords {
		if strings.Contains(sentence, kw) {
			return true
		}
	}
	return false
}
