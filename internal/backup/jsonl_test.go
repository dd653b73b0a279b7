package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hrag/internal/domain"
)

func TestJSONL_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONL(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	chunks := []domain.Chunk{
		{Level: 2, Index: 0, Content: "first", GroupIndex: domain.GroupIndex{0, 1, 2}},
		{Level: 2, Index: 1, Content: "second", GroupIndex: domain.GroupIndex{3, 4}},
	}
	if err := s.Save(ctx, 2, chunks); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chunks_level_2.jsonl")); err != nil {
		t.Fatalf("expected level file: %v", err)
	}
	got, ok, err := s.Load(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[1].GroupIndex.Encode() != "3,4" || got[0].Content != "first" {
		t.Errorf("unexpected chunks %+v", got)
	}
}

func TestJSONL_MissingLevel(t *testing.T) {
	s, err := NewJSONL(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, ok, err := s.Load(context.Background(), 3)
	if err != nil || ok {
		t.Errorf("expected ok=false, nil; got %v, %v", ok, err)
	}
}

func TestJSONL_RejectsWrongLevel(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewJSONL(dir)
	data := []byte(`{"level":1,"chunk_index":0,"content":"x"}` + "\n")
	if err := os.WriteFile(filepath.Join(dir, "chunks_level_2.jsonl"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(context.Background(), 2); err == nil {
		t.Error("expected level mismatch error")
	}
}

func TestNone(t *testing.T) {
	var s Store = None{}
	if err := s.Save(context.Background(), 1, []domain.Chunk{{}}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(context.Background(), 1); ok {
		t.Error("expected nothing restored")
	}
}
