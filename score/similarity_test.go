package score

import (
	"context"
	"fmt"
	"testing"

	"github.com/datar-psa/storyextract/api"
)

// mockEmbedder returns canned vectors keyed by input text
type mockEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func TestSimilarity(t *testing.T) {
	ctx := context.Background()

	embedder := &mockEmbedder{vectors: map[string][]float64{
		"reset password":    {1, 0},
		"reset my password": {1, 0},
		"save time":         {0, 1},
		"speed things up":   {1, 0},
	}}

	pred := api.Record{Action: "reset password", Benefit: "save time"}
	truth := api.Record{Action: "reset my password", Benefit: "speed things up"}

	sim, err := Similarity(ctx, embedder, pred, truth)
	if err != nil {
		t.Fatalf("Similarity() unexpected error = %v", err)
	}

	// Identical direction normalizes to 1.0, orthogonal to 0.5.
	if sim.Action != 1.0 {
		t.Errorf("Similarity() action = %v, want 1.0", sim.Action)
	}
	if sim.Benefit != 0.5 {
		t.Errorf("Similarity() benefit = %v, want 0.5", sim.Benefit)
	}
}

func TestSimilarityEmptyFieldsSkipEmbedding(t *testing.T) {
	ctx := context.Background()
	embedder := &mockEmbedder{vectors: map[string][]float64{}}

	sim, err := Similarity(ctx, embedder, api.Record{}, api.Record{Action: "login", Benefit: "speed"})
	if err != nil {
		t.Fatalf("Similarity() unexpected error = %v", err)
	}
	if sim.Action != 0 || sim.Benefit != 0 {
		t.Errorf("Similarity() = %+v, want zero similarities", sim)
	}
	if embedder.calls != 0 {
		t.Errorf("Similarity() called the embedder %d times for empty fields", embedder.calls)
	}
}

func TestSimilarityErrors(t *testing.T) {
	ctx := context.Background()
	pred := api.Record{Action: "a", Benefit: "b"}
	truth := api.Record{Action: "c", Benefit: "d"}

	if _, err := Similarity(ctx, nil, pred, truth); err == nil {
		t.Error("Similarity() with nil embedder, want error")
	}

	embedder := &mockEmbedder{err: fmt.Errorf("backend down")}
	if _, err := Similarity(ctx, embedder, pred, truth); err == nil {
		t.Error("Similarity() with failing embedder, want error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2}, b: []float64{1, 2}, want: 1.0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1.0},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "length mismatch", a: []float64{1}, b: []float64{1, 0}, want: 0},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
