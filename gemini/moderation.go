package gemini

import (
	"context"
	"fmt"

	language "cloud.google.com/go/language/apiv1"
	languagepb "cloud.google.com/go/language/apiv1/languagepb"

	"github.com/datar-psa/storyextract/api"
)

// LanguageModerationProvider implements ModerationProvider using the Google
// Cloud Natural Language API, for gating raw source documents during
// dataset preparation.
type LanguageModerationProvider struct {
	client *language.Client
}

// NewLanguageModerationProvider creates a provider around a preconfigured
// *language.Client (auth handled by caller)
func NewLanguageModerationProvider(client *language.Client) api.ModerationProvider {
	return &LanguageModerationProvider{client: client}
}

// Moderate analyzes content for safety using Google Cloud Natural Language API
func (p *LanguageModerationProvider) Moderate(ctx context.Context, content string) (*api.ModerationResult, error) {
	if p.client == nil {
		return nil, fmt.Errorf("language client is required")
	}

	req := &languagepb.ModerateTextRequest{
		Document: &languagepb.Document{
			Type: languagepb.Document_PLAIN_TEXT,
			Source: &languagepb.Document_Content{
				Content: content,
			},
		},
	}

	resp, err := p.client.ModerateText(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("moderate text failed: %w", err)
	}

	categories := make([]api.ModerationCategory, 0, len(resp.ModerationCategories))
	for _, c := range resp.ModerationCategories {
		categories = append(categories, api.ModerationCategory{
			Name:       friendlyCategoryName(c.Name),
			Confidence: float64(c.Confidence),
		})
	}

	return &api.ModerationResult{Categories: categories}, nil
}

// friendlyNames maps Google Cloud Natural Language API category names to
// the developer-friendly names in api.ModerationCategories. Unrecognized
// categories pass through unchanged.
var friendlyNames = map[string]string{
	"Death, Harm & Tragedy": "DeathHarmTragedy",
	"Firearms & Weapons":    "FirearmsWeapons",
	"Public Safety":         "PublicSafety",
	"Religion & Belief":     "ReligionBelief",
	"Illicit Drugs":         "IllicitDrugs",
	"War & Conflict":        "WarConflict",
}

func friendlyCategoryName(googleCategory string) string {
	if name, ok := friendlyNames[googleCategory]; ok {
		return name
	}
	return googleCategory
}
