package chunker

import (
	"strings"
	"testing"

	"hrag/internal/domain"
)

func doc(pages ...string) domain.Document {
	d := domain.Document{ID: "doc"}
	for i, p := range pages {
		d.Pages = append(d.Pages, domain.Page{Number: i + 1, Text: p})
	}
	return d
}

func TestRecursiveChunker_RespectsSizeAndOverlap(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	c := NewRecursiveChunker(100, 20)
	chunks, err := c.Chunk(doc(strings.Join(words, " ")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Content) > 100 {
			t.Errorf("chunk %d exceeds size: %d", i, len(ch.Content))
		}
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if ch.Level != domain.MinLevel {
			t.Errorf("chunk %d has level %d", i, ch.Level)
		}
	}
	// 20 characters of overlap is four "word" tokens shared between neighbours.
	if !strings.HasPrefix(chunks[1].Content, "word word word") {
		t.Errorf("expected overlap at start of second chunk, got %q", chunks[1].Content[:20])
	}
}

func TestRecursiveChunker_FallsBackToCharacters(t *testing.T) {
	c := NewRecursiveChunker(10, 0)
	chunks, err := c.Chunk(doc(strings.Repeat("x", 25)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].Content != "xxxxx" {
		t.Errorf("unexpected tail chunk %q", chunks[2].Content)
	}
}

func TestRecursiveChunker_PageAwareDenseIndex(t *testing.T) {
	c := NewRecursiveChunker(500, 100)
	chunks, err := c.Chunk(doc("First page text.", "   ", "Third page text."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 3 {
		t.Errorf("unexpected pages %d, %d", chunks[0].Page, chunks[1].Page)
	}
	if chunks[1].Index != 1 {
		t.Errorf("expected dense index 1, got %d", chunks[1].Index)
	}
}

func TestSentenceChunker_Overlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk(doc("One. Two. Three. Four"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"One. Two.", "Two. Three.", "Three. Four"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Content != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Content)
		}
	}
}

func TestSentenceChunker_Empty(t *testing.T) {
	c := NewSentenceChunker(3, 0)
	chunks, err := c.Chunk(doc(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}
