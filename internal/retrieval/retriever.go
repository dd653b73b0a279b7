// Package retrieval implements single-level scoped search and the
// hierarchical narrowing descent across levels.
package retrieval

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hrag/internal/domain"
	"hrag/internal/metrics"
)

var tracer = otel.Tracer("hrag/retrieval")

// Searcher is the similarity search collaborator for one level. A non-empty
// filter restricts candidates to the listed chunk indices.
type Searcher interface {
	Search(ctx context.Context, query string, k int, filter []int) ([]domain.SearchResult, error)
}

// Retriever searches one level with a fixed top_k. The restriction is an
// argument of every call; the retriever itself is immutable.
type Retriever struct {
	level    int
	topK     int
	searcher Searcher
}

func NewRetriever(level, topK int, searcher Searcher) *Retriever {
	return &Retriever{level: level, topK: topK, searcher: searcher}
}

func (r *Retriever) Level() int { return r.level }

func (r *Retriever) TopK() int { return r.topK }

// Search returns at most TopK chunks. An empty restriction searches the
// whole level.
func (r *Retriever) Search(ctx context.Context, query string, restriction []int) ([]domain.Chunk, error) {
	restricted := len(restriction) > 0
	ctx, span := tracer.Start(ctx, "retrieval.level_search", trace.WithAttributes(
		attribute.Int("level", r.level),
		attribute.Int("top_k", r.topK),
		attribute.Int("restriction_size", len(restriction)),
	))
	defer span.End()
	defer metrics.ObserveLevelSearch(r.level, restricted, time.Now())

	var filter []int
	if restricted {
		filter = restriction
	}
	res, err := r.searcher.Search(ctx, query, r.topK, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(res) > r.topK {
		res = res[:r.topK]
	}
	chunks := make([]domain.Chunk, len(res))
	for i, sr := range res {
		chunks[i] = sr.Chunk
	}
	span.SetAttributes(attribute.Int("matches", len(chunks)))
	return chunks, nil
}
