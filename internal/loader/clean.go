package loader

import (
	"regexp"
	"strings"

	"hrag/internal/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonASCIIRe   = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// CleanText flattens line breaks and tabs, replaces non-ASCII runs with a
// space and collapses whitespace.
func CleanText(text string) string {
	text = strings.NewReplacer("\n", " ", "\t", " ").Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = nonASCIIRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanPages drops pages with too little text and cleans the rest. Page
// numbers are preserved.
func CleanPages(pages []domain.Page, minChars int) []domain.Page {
	out := make([]domain.Page, 0, len(pages))
	for _, p := range pages {
		if len(strings.TrimSpace(p.Text)) <= minChars {
			continue
		}
		out = append(out, domain.Page{Number: p.Number, Text: CleanText(p.Text)})
	}
	return out
}
