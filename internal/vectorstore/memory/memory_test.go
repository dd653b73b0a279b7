package memory

import (
	"context"
	"testing"

	"hrag/internal/domain"
)

func seeded(t *testing.T) *Storage {
	t.Helper()
	s := NewStorage()
	ctx := context.Background()
	if err := s.Init(ctx, 2, "fp"); err != nil {
		t.Fatalf("init: %v", err)
	}
	chunks := []domain.Chunk{
		{Level: 1, Index: 0, Content: "a"},
		{Level: 1, Index: 1, Content: "b"},
		{Level: 1, Index: 2, Content: "c"},
		{Level: 1, Index: 3, Content: "d"},
	}
	vectors := [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}, {0.5, 0.5}}
	if err := s.Upsert(ctx, chunks, vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return s
}

func TestSearch_Unrestricted(t *testing.T) {
	s := seeded(t)
	res, err := s.Search(context.Background(), []float64{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.Index != 0 || res[1].Chunk.Index != 1 {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestSearch_FilterLimitsCandidates(t *testing.T) {
	s := seeded(t)
	res, err := s.Search(context.Background(), []float64{1, 0}, 10, []int{2, 3, 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	for _, r := range res {
		if r.Chunk.Index != 2 && r.Chunk.Index != 3 {
			t.Errorf("chunk %d outside filter", r.Chunk.Index)
		}
	}
	if res[0].Chunk.Index != 3 {
		t.Errorf("expected best eligible chunk 3 first, got %d", res[0].Chunk.Index)
	}
}

func TestSearch_NoLeakBetweenCalls(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if _, err := s.Search(ctx, []float64{1, 0}, 4, []int{2}); err != nil {
		t.Fatalf("search: %v", err)
	}
	res, err := s.Search(ctx, []float64{1, 0}, 4, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 4 {
		t.Errorf("expected full level after restricted call, got %d", len(res))
	}
}

func TestUpsert_Mismatch(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	_ = s.Init(ctx, 3, "")
	if err := s.Upsert(ctx, []domain.Chunk{{}}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := s.Upsert(ctx, []domain.Chunk{{}}, [][]float64{{1}}); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}

func TestFingerprint_ClearedWithContent(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if fp, _ := s.Fingerprint(ctx); fp != "fp" {
		t.Fatalf("expected recorded fingerprint, got %q", fp)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if fp, _ := s.Fingerprint(ctx); fp != "" {
		t.Errorf("expected no fingerprint after clear, got %q", fp)
	}
}
