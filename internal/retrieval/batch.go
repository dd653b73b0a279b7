package retrieval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"hrag/internal/domain"
)

// RangeQuery is one item of a batch of narrowing queries.
type RangeQuery struct {
	Query string `json:"query"`
	High  int    `json:"high_level"`
	Low   int    `json:"low_level"`
}

// BatchResult pairs a query with its outcome. Err is per query; one failing
// query does not affect the others.
type BatchResult struct {
	Query   RangeQuery
	Chunks  []domain.Chunk
	Descent *Descent
	Err     error
}

// AcrossLevelsBatch runs independent narrowing queries concurrently. Results
// are returned in input order. Only context cancellation fails the batch.
func (e *Engine) AcrossLevelsBatch(ctx context.Context, queries []RangeQuery) ([]BatchResult, error) {
	out := make([]BatchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			chunks, descent, err := e.AcrossLevels(gctx, q.Query, q.High, q.Low)
			out[i] = BatchResult{Query: q, Chunks: chunks, Descent: descent, Err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
