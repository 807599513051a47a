package api

import "context"

// Record is the structured form of a user story. Every field is always
// present: an absent narrative field is the empty string and an absent
// criteria list is an empty slice, so consumers can read any field
// unconditionally. AcceptanceCriteria is always an ordered slice, even when
// it holds a single criterion.
type Record struct {
	Actor              string   `json:"actor"`
	Action             string   `json:"action"`
	Benefit            string   `json:"benefit"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// Complete reports whether all three narrative fields are populated.
func (r Record) Complete() bool {
	return r.Actor != "" && r.Action != "" && r.Benefit != ""
}

// Generator is an interface for the text generator that turns a prompt into
// raw model output. This interface must be implemented by library consumers;
// a Gemini implementation is provided in the gemini subpackage.
// The library treats the generator as a black box: its output may be valid
// JSON, truncated JSON, or plain prose, and the recovery pipeline handles
// all three.
type Generator interface {
	// Generate produces raw text for the given prompt
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates an embedding vector for the given text
	// Returns a normalized vector (length = 1) suitable for cosine similarity
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ModerationCategories contains all supported moderation category names
// These are developer-friendly names that map to Google Cloud Natural Language API categories
var ModerationCategories []string = []string{
	"Toxic",
	"Derogatory",
	"Violent",
	"Sexual",
	"Insult",
	"Profanity",
	"DeathHarmTragedy",
	"FirearmsWeapons",
	"PublicSafety",
	"Health",
	"ReligionBelief",
	"IllicitDrugs",
	"WarConflict",
	"Finance",
	"Politics",
	"Legal",
}

// ModerationCategory represents a safety category with confidence score
type ModerationCategory struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ModerationResult represents the result of content moderation
type ModerationResult struct {
	Categories []ModerationCategory `json:"categories"`
}

// ModerationProvider is an interface for content moderation, used to gate
// raw source documents before they enter a prepared dataset.
// This interface must be implemented by library consumers;
// a Google Cloud Natural Language implementation is provided in the gemini subpackage.
type ModerationProvider interface {
	// Moderate analyzes content for safety and returns moderation results
	// Returns the moderation result or an error
	Moderate(ctx context.Context, content string) (*ModerationResult, error)
}
