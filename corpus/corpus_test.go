package corpus

import (
	"context"
	"fmt"
	"strings"
	"testing"

	storyextract "github.com/datar-psa/storyextract"
)

func TestLoad(t *testing.T) {
	input := strings.Join([]string{
		`{"input": "USER_STORY: one", "target": "{\"actor\":\"user\"}"}`,
		``,
		`not json at all`,
		`{"input": "USER_STORY: two", "target": "broken target"}`,
		`{"input": "USER_STORY: three", "target": "{\"actor\":\"admin\"}", "meta": {"source": "x"}}`,
	}, "\n")

	examples, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}

	// The undecodable line is dropped; the decodable line with a broken
	// target survives loading and is excluded later by Truth.
	if len(examples) != 3 {
		t.Fatalf("Load() returned %d examples, want 3", len(examples))
	}
	if examples[0].Input != "USER_STORY: one" {
		t.Errorf("Load() first input = %q", examples[0].Input)
	}
	if examples[2].Meta["source"] != "x" {
		t.Errorf("Load() meta = %v, want source x", examples[2].Meta)
	}
}

func TestTruth(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantOK       bool
		wantActor    string
		wantCriteria []string
	}{
		{
			name:         "full target",
			target:       `{"actor":"user","action":"login","benefit":"speed"}`,
			wantOK:       true,
			wantActor:    "user",
			wantCriteria: []string{},
		},
		{
			name:         "preparation-time acceptance key",
			target:       `{"actor":"user","acceptance":["logs in"]}`,
			wantOK:       true,
			wantActor:    "user",
			wantCriteria: []string{"logs in"},
		},
		{
			name:         "model schema criteria key",
			target:       `{"actor":"user","acceptance_criteria":["sees data"]}`,
			wantOK:       true,
			wantActor:    "user",
			wantCriteria: []string{"sees data"},
		},
		{
			name:   "invalid JSON excluded",
			target: `{"actor": `,
			wantOK: false,
		},
		{
			name:   "null actor excluded",
			target: `{"actor":null,"action":"login"}`,
			wantOK: false,
		},
		{
			name:   "missing actor excluded",
			target: `{"action":"login"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Truth(Example{Target: tt.target})
			if ok != tt.wantOK {
				t.Fatalf("Truth() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if rec.Actor != tt.wantActor {
				t.Errorf("Truth() actor = %q, want %q", rec.Actor, tt.wantActor)
			}
			if len(rec.AcceptanceCriteria) != len(tt.wantCriteria) {
				t.Fatalf("Truth() criteria = %v, want %v", rec.AcceptanceCriteria, tt.wantCriteria)
			}
			for i := range tt.wantCriteria {
				if rec.AcceptanceCriteria[i] != tt.wantCriteria[i] {
					t.Errorf("Truth() criteria[%d] = %q, want %q", i, rec.AcceptanceCriteria[i], tt.wantCriteria[i])
				}
			}
		})
	}
}

// queueGenerator pops canned responses in call order
type queueGenerator struct {
	responses []queued
	calls     int
}

type queued struct {
	text string
	err  error
}

func (q *queueGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if q.calls >= len(q.responses) {
		return "", fmt.Errorf("unexpected call %d", q.calls)
	}
	r := q.responses[q.calls]
	q.calls++
	return r.text, r.err
}

func TestEvaluatorRun(t *testing.T) {
	ctx := context.Background()

	examples := []Example{
		{
			Input:  "USER_STORY: As a user, I want to login so that I can access my account.",
			Target: `{"actor":"user","action":"login","benefit":"fast access"}`,
		},
		{
			// Unusable target: skipped before counting, generator not called.
			Input:  "USER_STORY: broken",
			Target: "not json",
		},
		{
			// Generation fails: counted in Total with no matches.
			Input:  "USER_STORY: another story",
			Target: `{"actor":"admin","action":"manage","benefit":"control"}`,
		},
	}

	gen := &queueGenerator{responses: []queued{
		{text: `{"actor": "user", "action": "login", "benefit": "fast access"}`},
		{err: fmt.Errorf("backend unavailable")},
	}}
	pipeline := storyextract.NewPipeline(storyextract.WithGenerator(gen))

	tally, err := NewEvaluator(pipeline).Run(ctx, examples)
	if err != nil {
		t.Fatalf("Run() unexpected error = %v", err)
	}

	if gen.calls != 2 {
		t.Errorf("Run() made %d generator calls, want 2", gen.calls)
	}
	if tally.Total != 2 {
		t.Errorf("Run() total = %d, want 2", tally.Total)
	}
	if tally.Perfect != 1 || tally.Actor != 1 || tally.Action != 1 || tally.Benefit != 1 {
		t.Errorf("Run() tally = %+v, want one perfect match", tally)
	}
}

func TestEvaluatorRunHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := storyextract.NewPipeline(storyextract.WithGenerator(&queueGenerator{}))
	examples := []Example{{Input: "USER_STORY: x", Target: `{"actor":"user"}`}}

	_, err := NewEvaluator(pipeline).Run(ctx, examples)
	if err == nil {
		t.Error("Run() with cancelled context, want error")
	}
}

func TestEvaluatorRunEmptyCorpus(t *testing.T) {
	pipeline := storyextract.NewPipeline(storyextract.WithGenerator(&queueGenerator{}))
	tally, err := NewEvaluator(pipeline).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() unexpected error = %v", err)
	}
	if tally.Total != 0 {
		t.Errorf("Run() total = %d, want 0", tally.Total)
	}
	if _, err := tally.Report(); err == nil {
		t.Error("Report() on empty tally, want error")
	}
}
