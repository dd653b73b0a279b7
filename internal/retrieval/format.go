package retrieval

import (
	"fmt"
	"strings"

	"hrag/internal/domain"
)

// NoRelevantInformation is returned to the model when a search has no matches.
const NoRelevantInformation = "There is no relevant information in the document"

// InvalidRangeMessage is returned to the model for an inverted or equal level range.
const InvalidRangeMessage = "High_level should be a higher value"

// FormatPassages renders chunks as numbered "Document i:" blocks.
func FormatPassages(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return NoRelevantInformation
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("Document %d:\n%s", i+1, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

// FormatCitations renders citations as "Page p:" blocks.
func FormatCitations(citations []Citation) string {
	if len(citations) == 0 {
		return NoRelevantInformation
	}
	parts := make([]string, len(citations))
	for i, c := range citations {
		parts[i] = fmt.Sprintf("Page %d:\n%s", c.Page, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
