package textgen

import (
	"fmt"
	"strings"
)

// StructuringPrompt instructs the model to reorganize raw study
// material into the constrained JSON document the pipeline consumes.
const StructuringPrompt = `You are an expert study-note editor. You receive raw extracted text from a lecture transcript, scanned document, or pasted notes. Reorganize it into structured study notes.

Respond with a single JSON object and nothing else, using this shape:
{
  "title": "short descriptive title",
  "summary": "optional 2-3 sentence overview",
  "structure": [
    {"type": "heading", "content": "..."},
    {"type": "subheading", "content": "..."},
    {"type": "paragraph", "content": "..."},
    {"type": "bullet_list", "items": ["...", "..."]},
    {"type": "key_term", "content": "term: definition"},
    {"type": "visual_placeholder", "placeholderId": "viz-1"}
  ],
  "visualOpportunities": [
    {"placeholderId": "viz-1", "description": "what the image should show", "searchQuery": "concise image search query"}
  ]
}

Rules:
- Allowed block types are exactly: heading, subheading, paragraph, bullet_list, key_term, visual_placeholder.
- Every visual_placeholder block must have a matching entry in visualOpportunities and vice versa.
- Placeholder ids are "viz-1", "viz-2", ... in order of appearance.
- Suggest at most 4 visual opportunities, only where an image genuinely aids understanding.
- Preserve the source language of the material.
- Do not invent facts that are not in the source text.`

// UserPrompt wraps the extracted text with an optional language hint.
func UserPrompt(text, languageCode string) string {
	var b strings.Builder
	if code := strings.TrimSpace(languageCode); code != "" {
		fmt.Fprintf(&b, "The material is in language %q. Keep the notes in that language.\n\n", code)
	}
	b.WriteString("Source material:\n\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}
