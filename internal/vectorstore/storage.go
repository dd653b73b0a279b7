// Package vectorstore defines the per-level vector storage used by the level index.
package vectorstore

import (
	"context"

	"hrag/internal/domain"
)

// Storage persists vectors for one level and supports similarity search.
// A non-empty filter limits eligible chunks to those whose Index is listed.
// Init records a fingerprint of the indexed content; Fingerprint reports it
// back, or "" when nothing is indexed.
type Storage interface {
	Init(ctx context.Context, dimension int, fingerprint string) error
	Fingerprint(ctx context.Context) (string, error)
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int, filter []int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// FilterSet turns a restriction into a membership set. It returns nil for an
// empty restriction, which means the whole level is eligible.
func FilterSet(filter []int) map[int]struct{} {
	if len(filter) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(filter))
	for _, i := range filter {
		set[i] = struct{}{}
	}
	return set
}
