// Package prep builds training corpora from raw source documents: each
// document is normalized, mined for acceptance criteria, and paired with a
// target-schema template, then the corpus is split deterministically into
// train/validation/test. An optional moderation gate excludes unsafe
// source text before it enters the dataset.
package prep

import (
	"context"
	"encoding/json"
	"fmt"

	storyextract "github.com/datar-psa/storyextract"
	"github.com/datar-psa/storyextract/api"
	"github.com/datar-psa/storyextract/corpus"
	"github.com/datar-psa/storyextract/criteria"
	"github.com/datar-psa/storyextract/normalize"
)

// target is the training-target schema. The narrative fields stay null in
// prepared data; only the mined criteria are filled in, and the model
// learns to supply the rest.
type target struct {
	Actor      *string  `json:"actor"`
	Action     *string  `json:"action"`
	Benefit    *string  `json:"benefit"`
	Acceptance []string `json:"acceptance"`
}

// Pair converts one raw source document into a corpus example: the
// flattened text behind the prompt tag, and a target holding the mined
// acceptance criteria.
func Pair(raw string, meta map[string]any) corpus.Example {
	acs := criteria.Mine(raw)
	if acs == nil {
		acs = []string{}
	}
	// Marshal of target cannot fail: plain strings and a string slice.
	encoded, _ := json.Marshal(target{Acceptance: acs})
	return corpus.Example{
		Input:  storyextract.DefaultPromptTag + " " + normalize.Flat(raw),
		Target: string(encoded),
		Meta:   meta,
	}
}

// Split divides examples deterministically: the first 80% train, the next
// 10% validation, the remainder test. Callers wanting a shuffled split
// shuffle before calling.
func Split(examples []corpus.Example) (train, validation, test []corpus.Example) {
	n := len(examples)
	trainEnd := int(0.8 * float64(n))
	valEnd := int(0.9 * float64(n))
	return examples[:trainEnd], examples[trainEnd:valEnd], examples[valEnd:]
}

// SafetyFilterOptions configures SafetyFilter creation
type SafetyFilterOptions struct {
	threshold  float64
	categories []string
}

// WithThreshold sets the confidence threshold above which a category flags
// the document (default 0.5)
func WithThreshold(threshold float64) func(*SafetyFilterOptions) {
	return func(opts *SafetyFilterOptions) {
		opts.threshold = threshold
	}
}

// WithCategories restricts flagging to the named moderation categories
// (default: all categories)
func WithCategories(categories []string) func(*SafetyFilterOptions) {
	return func(opts *SafetyFilterOptions) {
		opts.categories = categories
	}
}

// SafetyFilter gates raw source documents through a moderation provider
// before they are paired into a dataset.
type SafetyFilter struct {
	provider   api.ModerationProvider
	threshold  float64
	categories []string
}

// NewSafetyFilter creates a SafetyFilter using functional options.
func NewSafetyFilter(provider api.ModerationProvider, opts ...func(*SafetyFilterOptions)) *SafetyFilter {
	options := &SafetyFilterOptions{threshold: 0.5}
	for _, opt := range opts {
		opt(options)
	}
	return &SafetyFilter{
		provider:   provider,
		threshold:  options.threshold,
		categories: options.categories,
	}
}

// Allow reports whether the document passes moderation: true when no
// checked category exceeds the threshold. The second return lists the
// categories that flagged it.
func (f *SafetyFilter) Allow(ctx context.Context, text string) (bool, []api.ModerationCategory, error) {
	if f.provider == nil {
		return false, nil, fmt.Errorf("moderation provider is required")
	}

	result, err := f.provider.Moderate(ctx, text)
	if err != nil {
		return false, nil, fmt.Errorf("failed to moderate document: %w", err)
	}

	var flagged []api.ModerationCategory
	for _, category := range result.Categories {
		if !f.checks(category.Name) {
			continue
		}
		if category.Confidence > f.threshold {
			flagged = append(flagged, category)
		}
	}

	return len(flagged) == 0, flagged, nil
}

func (f *SafetyFilter) checks(name string) bool {
	if len(f.categories) == 0 {
		return true
	}
	for _, c := range f.categories {
		if c == name {
			return true
		}
	}
	return false
}
