package storyextract

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// stubGenerator returns a canned output and records the prompt it saw
type stubGenerator struct {
	output string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func TestPipelineExtractJSONOutput(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{output: `{"actor":"user","action":"login","benefit":"access account"}`}
	pipeline := NewPipeline(WithGenerator(gen))

	ex, err := pipeline.Extract(ctx, "As a user, I want to login so that I can access my account.")
	if err != nil {
		t.Fatalf("Extract() unexpected error = %v", err)
	}

	if gen.prompt != "USER_STORY: As a user, I want to login so that I can access my account." {
		t.Errorf("Extract() prompt = %q", gen.prompt)
	}
	if !ex.FromJSON {
		t.Error("Extract() FromJSON = false, want true for valid JSON output")
	}
	if ex.Record.Actor != "user" || ex.Record.Action != "login" || ex.Record.Benefit != "access account" {
		t.Errorf("Extract() record = %+v", ex.Record)
	}
	if ex.Confidence != ConfidenceHigh {
		t.Errorf("Extract() confidence = %v, want high", ex.Confidence)
	}
}

func TestPipelineExtractFlattensPrompt(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{output: "{}"}
	pipeline := NewPipeline(WithGenerator(gen))

	if _, err := pipeline.Extract(ctx, "line one\n\n  line two"); err != nil {
		t.Fatalf("Extract() unexpected error = %v", err)
	}
	if gen.prompt != "USER_STORY: line one line two" {
		t.Errorf("Extract() prompt = %q, want flattened story", gen.prompt)
	}
}

func TestPipelineExtractPatternFallback(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{output: "As a user, I want to reset my password so that I can regain access."}
	pipeline := NewPipeline(WithGenerator(gen))

	ex, err := pipeline.Extract(ctx, "irrelevant source")
	if err != nil {
		t.Fatalf("Extract() unexpected error = %v", err)
	}

	if ex.FromJSON {
		t.Error("Extract() FromJSON = true, want false for prose output")
	}
	if ex.Record.Actor != "user" {
		t.Errorf("Extract() actor = %q, want %q", ex.Record.Actor, "user")
	}
	if ex.Record.Action != "reset my password" {
		t.Errorf("Extract() action = %q, want %q", ex.Record.Action, "reset my password")
	}
	if ex.Record.Benefit != "i can regain access" {
		t.Errorf("Extract() benefit = %q, want %q", ex.Record.Benefit, "i can regain access")
	}
	if ex.Confidence != ConfidenceHigh {
		t.Errorf("Extract() confidence = %v, want high", ex.Confidence)
	}
}

func TestPipelineExtractErrors(t *testing.T) {
	ctx := context.Background()

	pipeline := NewPipeline()
	if _, err := pipeline.Extract(ctx, "story"); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("Extract() error = %v, want ErrNoGenerator", err)
	}

	gen := &stubGenerator{err: fmt.Errorf("backend unavailable")}
	pipeline = NewPipeline(WithGenerator(gen))
	if _, err := pipeline.Extract(ctx, "story"); !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Extract() error = %v, want ErrGenerationFailed", err)
	}
}

func TestPipelinePromptTagOverride(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{output: "{}"}
	pipeline := NewPipeline(WithGenerator(gen), WithPromptTag("STORY:"))

	if _, err := pipeline.Extract(ctx, "text"); err != nil {
		t.Fatalf("Extract() unexpected error = %v", err)
	}
	if gen.prompt != "STORY: text" {
		t.Errorf("Extract() prompt = %q, want custom tag", gen.prompt)
	}
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		source         string
		wantFromJSON   bool
		wantActor      string
		wantConfidence Confidence
	}{
		{
			name:           "clean JSON",
			raw:            `{"actor":"user","action":"login","benefit":"access account"}`,
			wantFromJSON:   true,
			wantActor:      "user",
			wantConfidence: ConfidenceHigh,
		},
		{
			name:           "truncated JSON repaired by cleaning",
			raw:            `{"actor":"user","action":"login","benefit":"access account"}</s> extra`,
			wantFromJSON:   true,
			wantActor:      "user",
			wantConfidence: ConfidenceHigh,
		},
		{
			name:           "partial JSON lowers confidence",
			raw:            `{"actor":"user"}`,
			wantFromJSON:   true,
			wantActor:      "user",
			wantConfidence: ConfidenceLow,
		},
		{
			name:           "prose falls back to pattern extraction",
			raw:            "the admin reviews requests",
			wantFromJSON:   false,
			wantActor:      "admin",
			wantConfidence: ConfidenceLow,
		},
		{
			name:           "unusable output recovers from source",
			raw:            "???",
			source:         "As a guest, I want to browse listings so that I can decide later.",
			wantFromJSON:   false,
			wantActor:      "guest",
			wantConfidence: ConfidenceHigh,
		},
		{
			name:           "nothing recoverable",
			raw:            "???",
			wantFromJSON:   false,
			wantActor:      "",
			wantConfidence: ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Recover(tt.raw, tt.source)
			if ex.FromJSON != tt.wantFromJSON {
				t.Errorf("Recover() FromJSON = %v, want %v", ex.FromJSON, tt.wantFromJSON)
			}
			if ex.Record.Actor != tt.wantActor {
				t.Errorf("Recover() actor = %q, want %q", ex.Record.Actor, tt.wantActor)
			}
			if ex.Confidence != tt.wantConfidence {
				t.Errorf("Recover() confidence = %v, want %v", ex.Confidence, tt.wantConfidence)
			}
			if ex.Record.AcceptanceCriteria == nil {
				t.Error("Recover() criteria slice is nil")
			}
		})
	}
}

func TestConfidenceString(t *testing.T) {
	if ConfidenceHigh.String() != "high" || ConfidenceLow.String() != "low" {
		t.Errorf("Confidence strings = %q/%q, want high/low", ConfidenceHigh, ConfidenceLow)
	}
}
