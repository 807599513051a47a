// Package storyextract converts free-text user stories into structured
// records by way of an unreliable text generator. The generator is a
// black box injected by the caller; everything after it is a deterministic
// recovery cascade: clean the raw output, attempt a lenient JSON parse,
// and fall back to pattern-based extraction when the output is not JSON
// at all.
package storyextract

import (
	"context"
	"fmt"

	"github.com/datar-psa/storyextract/api"
	"github.com/datar-psa/storyextract/extract"
	"github.com/datar-psa/storyextract/normalize"
)

type Record = api.Record
type Generator = api.Generator
type Embedder = api.Embedder
type ModerationProvider = api.ModerationProvider
type ModerationCategory = api.ModerationCategory
type ModerationResult = api.ModerationResult

var ModerationCategories = api.ModerationCategories

// DefaultPromptTag is the literal tag prefixed to story text when building
// the generator prompt; the model was trained with it.
const DefaultPromptTag = "USER_STORY:"

// Confidence is a binary quality signal for an extraction: High when all
// three narrative fields were recovered, Low otherwise. It is not a
// calibrated probability.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceHigh
)

func (c Confidence) String() string {
	if c == ConfidenceHigh {
		return "high"
	}
	return "low"
}

// Extraction is the full outcome of running one story through a pipeline:
// the generator's verbatim output, its cleaned form, the recovered record,
// and how the record was obtained.
type Extraction struct {
	// RawOutput is the generator's verbatim text
	RawOutput string
	// Cleaned is RawOutput after artifact stripping
	Cleaned string
	// Record is the recovered structured record
	Record api.Record
	// FromJSON is true when the record came from a JSON parse rather than
	// the pattern-extraction fallback
	FromJSON bool
	// Confidence is the binary completeness signal
	Confidence Confidence
}

// PipelineOptions configures Pipeline creation
type PipelineOptions struct {
	generator api.Generator
	promptTag string
}

// WithGenerator sets the text generator for the pipeline
func WithGenerator(g api.Generator) func(*PipelineOptions) {
	return func(opts *PipelineOptions) {
		opts.generator = g
	}
}

// WithPromptTag overrides the prompt tag prefixed to story text
func WithPromptTag(tag string) func(*PipelineOptions) {
	return func(opts *PipelineOptions) {
		opts.promptTag = tag
	}
}

// Pipeline binds a generator to the recovery cascade. It is stateless
// beyond its configuration: construct one at process start, share it
// freely, and run it concurrently across stories.
type Pipeline struct {
	generator api.Generator
	promptTag string
}

// NewPipeline creates a new Pipeline using functional options.
func NewPipeline(opts ...func(*PipelineOptions)) *Pipeline {
	options := &PipelineOptions{promptTag: DefaultPromptTag}
	for _, opt := range opts {
		opt(options)
	}
	return &Pipeline{
		generator: options.generator,
		promptTag: options.promptTag,
	}
}

// Extract runs one story through the generator and recovers a structured
// record from whatever comes back. The only fatal outcomes are a missing
// generator and a generator error; malformed output degrades to a record
// with empty fields.
func (p *Pipeline) Extract(ctx context.Context, story string) (Extraction, error) {
	if p.generator == nil {
		return Extraction{}, ErrNoGenerator
	}

	prompt := p.promptTag + " " + normalize.Flat(story)
	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return Recover(raw, story), nil
}

// Recover turns raw generator output into an Extraction without invoking a
// generator: clean, try the lenient JSON parse, and on failure fall back
// to pattern extraction over the raw text. source is the original story,
// consulted only by the fallback; pass "" when unavailable. Recover never
// fails.
func Recover(raw, source string) Extraction {
	cleaned := extract.Clean(raw)
	rec, parsed := extract.TryParse(cleaned)
	if !parsed {
		rec = extract.Components(raw, source)
	}

	conf := ConfidenceLow
	if rec.Complete() {
		conf = ConfidenceHigh
	}

	return Extraction{
		RawOutput:  raw,
		Cleaned:    cleaned,
		Record:     rec,
		FromJSON:   parsed,
		Confidence: conf,
	}
}
