// Package corpus loads line-delimited JSON evaluation corpora and runs a
// recovery pipeline over them, tallying match statistics. Malformed corpus
// lines and generation failures are expected conditions: one bad record
// never aborts a run.
package corpus

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	storyextract "github.com/datar-psa/storyextract"
	"github.com/datar-psa/storyextract/api"
	"github.com/datar-psa/storyextract/score"
)

// Example is one corpus record: the prompt text given to the model and the
// JSON-encoded ground-truth target.
type Example struct {
	Input  string         `json:"input"`
	Target string         `json:"target"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Load reads a line-delimited JSON corpus. Blank lines and lines that do
// not decode as Example are silently skipped; a decodable line with an
// unusable target is still returned so Truth can exclude it with the same
// rules at evaluation time.
func Load(r io.Reader) ([]Example, error) {
	var examples []Example
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Example
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		examples = append(examples, e)
	}
	if err := scanner.Err(); err != nil {
		return examples, fmt.Errorf("failed to read corpus: %w", err)
	}
	return examples, nil
}

// truthTarget tolerates both target spellings: preparation writes the
// criteria under "acceptance", the model's own schema uses
// "acceptance_criteria".
type truthTarget struct {
	Actor              string   `json:"actor"`
	Action             string   `json:"action"`
	Benefit            string   `json:"benefit"`
	Acceptance         []string `json:"acceptance"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// Truth decodes an example's ground-truth target. The second return is
// false when the target is not valid JSON or the truth actor is empty;
// such records are excluded from the evaluated corpus entirely and never
// reach the tally.
func Truth(e Example) (api.Record, bool) {
	var t truthTarget
	if err := json.Unmarshal([]byte(e.Target), &t); err != nil {
		return api.Record{}, false
	}
	if t.Actor == "" {
		return api.Record{}, false
	}
	rec := api.Record{
		Actor:              t.Actor,
		Action:             t.Action,
		Benefit:            t.Benefit,
		AcceptanceCriteria: t.AcceptanceCriteria,
	}
	if rec.AcceptanceCriteria == nil {
		rec.AcceptanceCriteria = t.Acceptance
	}
	if rec.AcceptanceCriteria == nil {
		rec.AcceptanceCriteria = []string{}
	}
	return rec, true
}

// EvaluatorOptions configures Evaluator creation
type EvaluatorOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for per-record diagnostics
func WithLogger(logger *zap.Logger) func(*EvaluatorOptions) {
	return func(opts *EvaluatorOptions) {
		opts.logger = logger
	}
}

// Evaluator runs a pipeline over a corpus and tallies field accuracy. The
// tally it produces is owned by one run and reset each time Run is called.
type Evaluator struct {
	pipeline *storyextract.Pipeline
	logger   *zap.Logger
}

// NewEvaluator creates an Evaluator around a constructed pipeline.
func NewEvaluator(pipeline *storyextract.Pipeline, opts ...func(*EvaluatorOptions)) *Evaluator {
	options := &EvaluatorOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(options)
	}
	return &Evaluator{
		pipeline: pipeline,
		logger:   options.logger,
	}
}

// Run evaluates every usable example and returns the tally. Examples whose
// target is undecodable or whose truth actor is empty are skipped before
// counting. A generation failure is logged and counted in Total with no
// field matches, and processing continues. Run stops early only when ctx
// is done, returning the partial tally with the context error.
func (ev *Evaluator) Run(ctx context.Context, examples []Example) (score.Tally, error) {
	var tally score.Tally

	for i, e := range examples {
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		truth, ok := Truth(e)
		if !ok {
			ev.logger.Debug("skipping example with unusable target", zap.Int("index", i))
			continue
		}

		story := strings.TrimSpace(strings.TrimPrefix(e.Input, storyextract.DefaultPromptTag))

		ex, err := ev.pipeline.Extract(ctx, story)
		if err != nil {
			// Still counted in the denominator, with no field matches.
			tally.Total++
			ev.logger.Warn("extraction failed",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}

		m := score.Match(ex.Record, truth)
		tally.Add(m)

		ev.logger.Debug("scored example",
			zap.Int("index", i),
			zap.Bool("from_json", ex.FromJSON),
			zap.Bool("perfect", m.Perfect),
		)
	}

	return tally, nil
}
