package summarizer

import (
	"context"
	"testing"
)

func TestFrequencySummarizer_KeepsOrderAndLimit(t *testing.T) {
	s := NewFrequencySummarizer(2)
	texts := []string{
		"Retrieval narrows the search. Cats sleep a lot.",
		"Narrowing retrieval uses summaries. The weather is mild.",
	}
	got, err := s.Summarize(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Retrieval narrows the search. Narrowing retrieval uses summaries."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFrequencySummarizer_NoSentences(t *testing.T) {
	s := NewFrequencySummarizer(3)
	got, err := s.Summarize(context.Background(), []string{"  no terminal punctuation  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "no terminal punctuation" {
		t.Errorf("unexpected summary %q", got)
	}
}

func TestFrequencySummarizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFrequencySummarizer(3).Summarize(ctx, []string{"One."}); err == nil {
		t.Fatal("expected context error")
	}
}
