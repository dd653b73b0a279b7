// Package chunker splits a loaded document into level-1 chunks.
package chunker

import (
	"strings"

	"hrag/internal/domain"
)

// chunkPages applies split to every page and numbers the resulting chunks
// densely from 0. Each chunk records the page it came from.
func chunkPages(document domain.Document, split func(string) []string) []domain.Chunk {
	var chunks []domain.Chunk
	idx := 0
	for _, page := range document.Pages {
		for _, text := range split(page.Text) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Level:   domain.MinLevel,
				Index:   idx,
				Content: text,
				Page:    page.Number,
			})
			idx++
		}
	}
	return chunks
}
