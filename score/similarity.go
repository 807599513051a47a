package score

import (
	"context"
	"fmt"
	"math"

	"github.com/datar-psa/storyextract/api"
)

// FieldSimilarity carries embedding-based cosine similarity between the
// predicted and truth action and benefit phrases, normalized to [0,1].
// It is a diagnostic for near-miss analysis; the match predicates in this
// package never consult it.
type FieldSimilarity struct {
	Action  float64
	Benefit float64
}

// Similarity embeds the action and benefit of both records and returns
// their cosine similarities. Fields that are empty on either side score 0
// without calling the embedder.
func Similarity(ctx context.Context, embedder api.Embedder, pred, truth api.Record) (FieldSimilarity, error) {
	if embedder == nil {
		return FieldSimilarity{}, fmt.Errorf("embedder is required")
	}

	var sim FieldSimilarity
	var err error
	sim.Action, err = pairSimilarity(ctx, embedder, pred.Action, truth.Action)
	if err != nil {
		return FieldSimilarity{}, fmt.Errorf("action similarity: %w", err)
	}
	sim.Benefit, err = pairSimilarity(ctx, embedder, pred.Benefit, truth.Benefit)
	if err != nil {
		return FieldSimilarity{}, fmt.Errorf("benefit similarity: %w", err)
	}
	return sim, nil
}

func pairSimilarity(ctx context.Context, embedder api.Embedder, pred, truth string) (float64, error) {
	if pred == "" || truth == "" {
		return 0, nil
	}

	predEmbed, err := embedder.Embed(ctx, pred)
	if err != nil {
		return 0, fmt.Errorf("failed to embed prediction: %w", err)
	}
	truthEmbed, err := embedder.Embed(ctx, truth)
	if err != nil {
		return 0, fmt.Errorf("failed to embed truth: %w", err)
	}

	// Normalize from [-1, 1] to [0, 1]. Embeddings are usually positive so
	// the raw similarity is typically already in [0, 1], but handle the
	// full range.
	normalized := (cosineSimilarity(predEmbed, truthEmbed) + 1.0) / 2.0
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}
	return normalized, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (normA * normB)
}
