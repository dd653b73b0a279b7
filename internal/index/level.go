// Package index embeds hierarchy levels into vector stores and serves
// single-level similarity search over them.
package index

import (
	"context"
	"fmt"

	"hrag/internal/domain"
	"hrag/internal/vectorstore"
)

// LevelIndex is the searchable collection of one level. It holds no
// per-query state, so one instance can serve concurrent searches.
type LevelIndex struct {
	level    int
	embedder domain.Embedder
	store    vectorstore.Storage
	chunks   []domain.Chunk
}

func NewLevelIndex(level int, embedder domain.Embedder, store vectorstore.Storage, chunks []domain.Chunk) *LevelIndex {
	return &LevelIndex{level: level, embedder: embedder, store: store, chunks: chunks}
}

func (ix *LevelIndex) Level() int { return ix.level }

// Len returns the number of chunks in the level.
func (ix *LevelIndex) Len() int { return len(ix.chunks) }

// Search returns up to k chunks ranked by similarity to query. A non-empty
// filter restricts candidates to the listed chunk indices. When the query
// embedding is all zeros, or every returned score is zero, ranking falls back
// to lexical overlap under the same filter.
func (ix *LevelIndex) Search(ctx context.Context, query string, k int, filter []int) ([]domain.SearchResult, error) {
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if isZero(vec) {
		return lexicalSearch(ix.chunks, query, k, vectorstore.FilterSet(filter)), nil
	}
	res, err := ix.store.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", domain.LevelName(ix.level), err)
	}
	allZero := true
	for _, r := range res {
		if r.Score > 1e-9 {
			allZero = false
			break
		}
	}
	if allZero && len(res) > 0 {
		return lexicalSearch(ix.chunks, query, k, vectorstore.FilterSet(filter)), nil
	}
	return res, nil
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
