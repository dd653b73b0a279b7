package loader

import (
	"io"
	"strings"

	"hrag/internal/domain"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]domain.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return splitPages(string(data)), nil
}

func splitPages(text string) []domain.Page {
	var pages []domain.Page
	for i, part := range strings.Split(text, "\f") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: part})
	}
	return pages
}
