package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scribe/internal/providers"
	"scribe/internal/services"
)

// Structure sends extracted text to the model and returns the
// schema-validated structured content. Responses that fail validation
// count as provider failures so the caller's fallback policy applies.
func (c *Client) Structure(ctx context.Context, text, languageCode string) (providers.StructuredContent, error) {
	var empty providers.StructuredContent
	if strings.TrimSpace(text) == "" {
		return empty, services.Wrap(services.ErrValidation, "structuring", "structure", "no extracted text to structure", nil)
	}

	raw, err := c.CompleteJSON(ctx, StructuringPrompt, UserPrompt(text, languageCode))
	if err != nil {
		return empty, services.Wrap(services.ErrProvider, "structuring", "complete", "text generation failed", err)
	}

	var content providers.StructuredContent
	if err := DecodeModelJSON(raw, &content); err != nil {
		return empty, services.Wrap(services.ErrProvider, "structuring", "decode", "model returned malformed JSON", err)
	}

	canonical, err := canonicalJSON(content)
	if err != nil {
		return empty, fmt.Errorf("re-encode structured content: %w", err)
	}
	if err := ValidateStructuredJSON(canonical); err != nil {
		return empty, services.Wrap(services.ErrProvider, "structuring", "validate", "model response failed schema validation", err)
	}
	if err := checkPlaceholderConsistency(content); err != nil {
		return empty, services.Wrap(services.ErrProvider, "structuring", "validate", "placeholder references are inconsistent", err)
	}
	return content, nil
}

func canonicalJSON(content providers.StructuredContent) (string, error) {
	encoded, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// checkPlaceholderConsistency verifies every visual_placeholder block
// has a matching opportunity and no opportunity dangles.
func checkPlaceholderConsistency(content providers.StructuredContent) error {
	blocks := map[string]bool{}
	for _, block := range content.Structure {
		if block.Type == providers.BlockVisualPlaceholder {
			if blocks[block.PlaceholderID] {
				return fmt.Errorf("duplicate placeholder %q", block.PlaceholderID)
			}
			blocks[block.PlaceholderID] = true
		}
	}
	opportunities := map[string]bool{}
	for _, opp := range content.VisualOpportunities {
		if opportunities[opp.PlaceholderID] {
			return fmt.Errorf("duplicate visual opportunity %q", opp.PlaceholderID)
		}
		opportunities[opp.PlaceholderID] = true
	}
	for id := range blocks {
		if !opportunities[id] {
			return fmt.Errorf("placeholder %q has no visual opportunity", id)
		}
	}
	for id := range opportunities {
		if !blocks[id] {
			return fmt.Errorf("visual opportunity %q has no placeholder block", id)
		}
	}
	return nil
}
