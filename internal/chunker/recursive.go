package chunker

import (
	"strings"
	"unicode/utf8"

	"hrag/internal/domain"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on progressively finer separators until every
// piece fits chunkSize characters, then merges neighbours back together with
// up to chunkOverlap characters shared between consecutive chunks.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewRecursiveChunker(chunkSize, chunkOverlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return chunkPages(document, func(s string) []string {
		return c.splitText(s, c.separators)
	}), nil
}

func (c *RecursiveChunker) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	for _, s := range splitOn(text, separator) {
		if s != "" {
			splits = append(splits, s)
		}
	}

	var final, good []string
	for _, s := range splits {
		if runeLen(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.mergeSplits(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, c.splitText(s, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.mergeSplits(good, separator)...)
	}
	return final
}

func (c *RecursiveChunker) mergeSplits(splits []string, separator string) []string {
	sepLen := runeLen(separator)
	var docs, current []string
	total := 0
	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, d := range splits {
		l := runeLen(d)
		if total+l+joinLen() > c.chunkSize {
			if len(current) > 0 {
				if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
					docs = append(docs, doc)
				}
				for total > c.chunkOverlap || (total+l+joinLen() > c.chunkSize && total > 0) {
					drop := runeLen(current[0])
					if len(current) > 1 {
						drop += sepLen
					}
					total -= drop
					current = current[1:]
				}
			}
		}
		current = append(current, d)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitOn(text, separator string) []string {
	if separator != "" {
		return strings.Split(text, separator)
	}
	out := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
