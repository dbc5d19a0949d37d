package providers

import "strings"

// PageSeparator joins multi-page OCR output so downstream structuring
// can still reason about page boundaries.
const PageSeparator = "\n\n---\n\n"

// OCRResult carries extracted document text and its origin.
type OCRResult struct {
	Text     string
	Provider string
	Pages    int
}

// Word is a single transcribed token with timing in seconds from the
// start of the audio it was transcribed from.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript carries transcribed audio text with optional word
// timings.
type Transcript struct {
	Text     string
	Words    []Word
	Language string
	Provider string
}

// Shift returns a copy of the transcript with all word timings moved
// by the given offset in seconds. Used when merging chunk transcripts
// back onto the original file's timeline.
func (t Transcript) Shift(offsetSeconds float64) Transcript {
	if offsetSeconds == 0 || len(t.Words) == 0 {
		return t
	}
	shifted := make([]Word, len(t.Words))
	for i, w := range t.Words {
		shifted[i] = Word{Word: w.Word, Start: w.Start + offsetSeconds, End: w.End + offsetSeconds}
	}
	out := t
	out.Words = shifted
	return out
}

// Block is one typed unit of structured note content.
type Block struct {
	Type    string   `json:"type"`
	Content string   `json:"content,omitempty"`
	Items   []string `json:"items,omitempty"`
	// PlaceholderID links a visual_placeholder block to its
	// visual opportunity.
	PlaceholderID string `json:"placeholderId,omitempty"`
}

// Block types emitted by the structuring model.
const (
	BlockHeading           = "heading"
	BlockSubheading        = "subheading"
	BlockParagraph         = "paragraph"
	BlockBulletList        = "bullet_list"
	BlockKeyTerm           = "key_term"
	BlockVisualPlaceholder = "visual_placeholder"
)

// VisualOpportunity is a structuring-model suggestion for an image,
// keyed by the placeholder block it should fill.
type VisualOpportunity struct {
	PlaceholderID string `json:"placeholderId"`
	Description   string `json:"description"`
	SearchQuery   string `json:"searchQuery"`
	// ImageURL is filled during visual resolution; empty means the
	// placeholder stays unresolved.
	ImageURL string `json:"imageUrl,omitempty"`
	// LocalPath is filled when visual generation downloads the image.
	LocalPath string `json:"localPath,omitempty"`
}

// StructuredContent is the schema-validated output of the structuring
// stage.
type StructuredContent struct {
	Title               string              `json:"title"`
	Summary             string              `json:"summary,omitempty"`
	Structure           []Block             `json:"structure"`
	VisualOpportunities []VisualOpportunity `json:"visualOpportunities,omitempty"`
}

// Empty reports whether the content has no usable substance.
func (c StructuredContent) Empty() bool {
	return strings.TrimSpace(c.Title) == "" && len(c.Structure) == 0
}

// Opportunity returns the visual opportunity for a placeholder, if any.
func (c StructuredContent) Opportunity(placeholderID string) (VisualOpportunity, bool) {
	for _, opp := range c.VisualOpportunities {
		if opp.PlaceholderID == placeholderID {
			return opp, true
		}
	}
	return VisualOpportunity{}, false
}
