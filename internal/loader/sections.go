package loader

import (
	"strings"

	"hrag/internal/domain"
)

// sections accumulates heading-delimited text for formats without pages.
type sections struct {
	texts   []string
	current strings.Builder
}

func (s *sections) startSection(title string) {
	s.flush()
	s.current.WriteString(title)
}

func (s *sections) add(text string) {
	if s.current.Len() > 0 {
		s.current.WriteString("\n\n")
	}
	s.current.WriteString(text)
}

func (s *sections) flush() {
	if t := strings.TrimSpace(s.current.String()); t != "" {
		s.texts = append(s.texts, t)
	}
	s.current.Reset()
}

func (s *sections) pages() []domain.Page {
	s.flush()
	pages := make([]domain.Page, len(s.texts))
	for i, t := range s.texts {
		pages[i] = domain.Page{Number: i + 1, Text: t}
	}
	return pages
}
