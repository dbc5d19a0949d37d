package notes

import (
	"fmt"
	"strings"

	"scribe/internal/providers"
)

// RenderMarkdown turns structured content plus resolved visuals into a
// markdown document. Unresolved visual placeholders are dropped rather
// than rendered as broken links.
func RenderMarkdown(content providers.StructuredContent) string {
	var b strings.Builder

	title := strings.TrimSpace(content.Title)
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if summary := strings.TrimSpace(content.Summary); summary != "" {
		fmt.Fprintf(&b, "> %s\n\n", summary)
	}

	for _, block := range content.Structure {
		switch block.Type {
		case providers.BlockHeading:
			fmt.Fprintf(&b, "## %s\n\n", strings.TrimSpace(block.Content))
		case providers.BlockSubheading:
			fmt.Fprintf(&b, "### %s\n\n", strings.TrimSpace(block.Content))
		case providers.BlockParagraph:
			fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(block.Content))
		case providers.BlockBulletList:
			for _, item := range block.Items {
				fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(item))
			}
			b.WriteString("\n")
		case providers.BlockKeyTerm:
			fmt.Fprintf(&b, "**%s**\n\n", strings.TrimSpace(block.Content))
		case providers.BlockVisualPlaceholder:
			opp, ok := content.Opportunity(block.PlaceholderID)
			if !ok || strings.TrimSpace(opp.ImageURL) == "" {
				continue
			}
			alt := strings.TrimSpace(opp.Description)
			if alt == "" {
				alt = block.PlaceholderID
			}
			fmt.Fprintf(&b, "![%s](%s)\n\n", alt, opp.ImageURL)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
