// Package memory is an in-process vector store.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"hrag/internal/domain"
	"hrag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu          sync.RWMutex
	dimension   int
	fingerprint string
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(ctx context.Context, dimension int, fingerprint string) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.fingerprint = fingerprint
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	s.chunks = append(s.chunks, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, filter []int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	allowed := vectorstore.FilterSet(filter)
	type scored struct {
		pos   int
		score float64
	}
	// cosine similarity (vectors are assumed L2-normalized)
	candidates := make([]scored, 0, len(s.vectors))
	for i := range s.vectors {
		if allowed != nil {
			if _, ok := allowed[s.chunks[i].Index]; !ok {
				continue
			}
		}
		candidates = append(candidates, scored{pos: i, score: dot(s.vectors[i], vector)})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, c := range candidates[:topK] {
		results = append(results, domain.SearchResult{Chunk: s.chunks[c.pos], Score: c.score})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Storage) Fingerprint(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = ""
	s.vectors = nil
	s.chunks = nil
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
