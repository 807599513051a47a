// Package score grades predicted user-story records against ground truth.
// Field comparisons are deliberately relaxed string predicates rather than
// strict equality: actors tolerate extra descriptive words around the role
// noun, and actions/benefits tolerate a truncated but correct prediction.
package score

import (
	"errors"
	"strings"

	"github.com/datar-psa/storyextract/api"
)

// ErrNoValidData is returned by Report when no records survived corpus
// filtering, so there is nothing to divide by.
var ErrNoValidData = errors.New("no valid records were scored")

// MatchResult holds the per-field outcome of comparing one prediction
// against one ground-truth record. Perfect is the conjunction of the three
// field matches.
type MatchResult struct {
	Actor   bool
	Action  bool
	Benefit bool
	Perfect bool
}

// Match compares a predicted record against ground truth. Values are
// lower-cased and trimmed before comparison. The actor predicate is
// bidirectional containment; action and benefit accept exact equality or a
// prediction longer than five characters contained in the truth. The
// asymmetry is intentional: a truncated correct phrase matches, an
// over-broad superset does not.
func Match(pred, truth api.Record) MatchResult {
	predActor, truthActor := fold(pred.Actor), fold(truth.Actor)
	predAction, truthAction := fold(pred.Action), fold(truth.Action)
	predBenefit, truthBenefit := fold(pred.Benefit), fold(truth.Benefit)

	r := MatchResult{
		Actor:   actorMatch(predActor, truthActor),
		Action:  phraseMatch(predAction, truthAction),
		Benefit: phraseMatch(predBenefit, truthBenefit),
	}
	r.Perfect = r.Actor && r.Action && r.Benefit
	return r
}

// fold normalizes a field value for comparison.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// actorMatch is bidirectional containment: either value appearing inside
// the other counts.
func actorMatch(pred, truth string) bool {
	return strings.Contains(pred, truth) || strings.Contains(truth, pred)
}

// phraseMatch accepts exact equality, or a prediction longer than five
// characters that appears inside the truth. Only pred-inside-truth; the
// reverse direction would reward over-generation.
func phraseMatch(pred, truth string) bool {
	return pred == truth || (len(pred) > 5 && strings.Contains(truth, pred))
}

// Tally accumulates match counters over one evaluation run. It is owned by
// a single run; parallel evaluations should sum per-worker tallies with
// Merge rather than share one.
type Tally struct {
	Total   int
	Perfect int
	Actor   int
	Action  int
	Benefit int
}

// Add records one scored result. Total counts every scored record, matched
// or not; records that failed before scoring are counted by incrementing
// Total directly.
func (t *Tally) Add(r MatchResult) {
	t.Total++
	if r.Actor {
		t.Actor++
	}
	if r.Action {
		t.Action++
	}
	if r.Benefit {
		t.Benefit++
	}
	if r.Perfect {
		t.Perfect++
	}
}

// Merge folds another tally into t, for reducing per-worker partial
// tallies.
func (t *Tally) Merge(other Tally) {
	t.Total += other.Total
	t.Perfect += other.Perfect
	t.Actor += other.Actor
	t.Action += other.Action
	t.Benefit += other.Benefit
}

// Report holds the percentages derived from a tally at report time.
type Report struct {
	Total      int
	Perfect    int
	PerfectPct float64
	ActorPct   float64
	ActionPct  float64
	BenefitPct float64
}

// Report derives percentages from the tally. An empty tally returns
// ErrNoValidData instead of dividing by zero.
func (t Tally) Report() (Report, error) {
	if t.Total == 0 {
		return Report{}, ErrNoValidData
	}
	n := float64(t.Total)
	return Report{
		Total:      t.Total,
		Perfect:    t.Perfect,
		PerfectPct: float64(t.Perfect) / n * 100,
		ActorPct:   float64(t.Actor) / n * 100,
		ActionPct:  float64(t.Action) / n * 100,
		BenefitPct: float64(t.Benefit) / n * 100,
	}, nil
}
