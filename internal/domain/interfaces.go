package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinLevel is the finest level (raw text chunks).
	MinLevel = 1
	// MaxLevel is the coarsest summary level.
	MaxLevel = 5
)

// Page is one page of a loaded document. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Document represents the single source file loaded into the system.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Chunk is one indexed unit of text at a given level.
type Chunk struct {
	Level      int
	Index      int
	Content    string
	GroupIndex GroupIndex
	Page       int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits a document into level-1 chunks.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer condenses an ordered group of texts into one text.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// LevelName returns the registry name of a level, e.g. "level_3".
func LevelName(level int) string {
	return "level_" + strconv.Itoa(level)
}

// ParseLevelName is the inverse of LevelName.
func ParseLevelName(name string) (int, error) {
	rest, ok := strings.CutPrefix(name, "level_")
	if !ok {
		return 0, fmt.Errorf("malformed level name %q", name)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || strconv.Itoa(n) != rest {
		return 0, fmt.Errorf("malformed level name %q", name)
	}
	return n, nil
}

// ValidLevel reports whether level lies in [MinLevel, MaxLevel].
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}
