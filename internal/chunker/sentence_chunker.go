package chunker

import (
	"regexp"
	"strings"

	"hrag/internal/domain"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return chunkPages(document, c.split), nil
}

func (c *SentenceChunker) split(content string) []string {
	sentences := c.splitter.FindAllString(content, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	} else if tail := strings.TrimSpace(content[lastMatchEnd(c.splitter, content):]); tail != "" {
		// Keep trailing text without terminal punctuation.
		sentences = append(sentences, tail)
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	var out []string
	i := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		out = append(out, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return out
}

func lastMatchEnd(re *regexp.Regexp, s string) int {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return 0
	}
	return locs[len(locs)-1][1]
}
