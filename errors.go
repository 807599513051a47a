package storyextract

import "errors"

var (
	// ErrNoGenerator is returned when a pipeline is run without a generator
	ErrNoGenerator = errors.New("generator is required for this pipeline")
	// ErrGenerationFailed is returned when the underlying text generation fails
	ErrGenerationFailed = errors.New("text generation failed")
)
