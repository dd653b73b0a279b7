package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"hrag/internal/agent"
	"hrag/internal/backup"
	"hrag/internal/chunker"
	"hrag/internal/domain"
	"hrag/internal/embedding/tfidf"
	"hrag/internal/hierarchy"
	"hrag/internal/logger"
	"hrag/internal/retrieval"
	"hrag/internal/summarizer"
	"hrag/internal/vectorstore"
	"hrag/internal/vectorstore/memory"
)

const testDoc = `The lighthouse stands on the northern cliff. Its keeper lights the lamp every evening.
Ships pass the rocks safely when the lamp burns bright.

Storms arrive in winter. Waves break over the harbour wall and the fishing boats stay in port.
` + "\f" + `The village bakery opens at dawn. Bread and pastries are sold to the fishermen.
The baker learned the trade from her grandmother.

A market is held on the square every Saturday. Farmers bring cheese, apples and honey.
` + "\f" + `The old railway line closed decades ago. Walkers now follow the track along the valley.
Wild flowers grow between the sleepers in spring.`

type countingSummarizer struct {
	inner domain.Summarizer
	calls atomic.Int32
}

func (s *countingSummarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	s.calls.Add(1)
	return s.inner.Summarize(ctx, texts)
}

func memoryStores() map[int]vectorstore.Storage {
	out := make(map[int]vectorstore.Storage)
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		out[level] = memory.NewStorage()
	}
	return out
}

func testOptions() Options {
	return Options{
		MinPageChars: 20,
		Hierarchy: hierarchy.Options{
			GroupSizes: map[int]int{2: 2, 3: 2, 4: 2, 5: 2},
		},
		TopK:      map[int]int{1: 3, 2: 3, 3: 2, 4: 2, 5: 1},
		Retrieval: retrieval.Options{Policy: retrieval.PolicyRetain},
	}
}

func openTestSystem(t *testing.T, docPath, backupDir string, sum *countingSummarizer) *System {
	t.Helper()
	store, err := backup.NewJSONL(backupDir)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	c := Components{
		Chunker:    chunker.NewRecursiveChunker(120, 20),
		Summarizer: sum,
		Embedder:   tfidf.NewEmbedder(),
		Backup:     store,
		Stores:     memoryStores(),
	}
	s, err := Open(context.Background(), docPath, c, testOptions(), logger.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "village.txt")
	if err := os.WriteFile(path, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen_BuildsAllLevelsAndSearches(t *testing.T) {
	sum := &countingSummarizer{inner: summarizer.NewFrequencySummarizer(2)}
	s := openTestSystem(t, writeDoc(t), t.TempDir(), sum)

	counts := s.Counts()
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		if counts[level] == 0 {
			t.Fatalf("level %d is empty: %v", level, counts)
		}
	}
	if counts[1] <= counts[2] {
		t.Errorf("expected level 1 to be larger than level 2: %v", counts)
	}

	chunks, descent, err := s.Engine.AcrossLevels(context.Background(), "lighthouse keeper lamp", 3, 1)
	if err != nil {
		t.Fatalf("across levels: %v", err)
	}
	if len(descent.Steps) != 3 {
		t.Errorf("expected 3 steps, got %+v", descent.Steps)
	}
	for _, c := range chunks {
		if c.Level != 1 {
			t.Errorf("expected level-1 chunk, got level %d", c.Level)
		}
	}

	cites, _, err := s.Engine.Cite(context.Background(), "bakery", 5)
	if err != nil {
		t.Fatalf("cite: %v", err)
	}
	for _, c := range cites {
		if c.Page < 1 || c.Page > 3 {
			t.Errorf("unexpected page %d", c.Page)
		}
	}
}

func TestOpen_ReusesBackups(t *testing.T) {
	doc := writeDoc(t)
	dir := t.TempDir()
	first := &countingSummarizer{inner: summarizer.NewFrequencySummarizer(2)}
	a := openTestSystem(t, doc, dir, first)
	if first.calls.Load() == 0 {
		t.Fatal("expected summaries on first build")
	}

	second := &countingSummarizer{inner: summarizer.NewFrequencySummarizer(2)}
	b := openTestSystem(t, doc, dir, second)
	if second.calls.Load() != 0 {
		t.Errorf("expected no summaries when backups exist, got %d", second.calls.Load())
	}
	for level, n := range a.Counts() {
		if b.Counts()[level] != n {
			t.Errorf("level %d: %d chunks restored, %d built", level, b.Counts()[level], n)
		}
	}
}

func TestOpen_MissingTopK(t *testing.T) {
	opts := testOptions()
	delete(opts.TopK, 4)
	c := Components{
		Chunker:    chunker.NewRecursiveChunker(120, 20),
		Summarizer: summarizer.NewFrequencySummarizer(2),
		Embedder:   tfidf.NewEmbedder(),
		Stores:     memoryStores(),
	}
	if _, err := Open(context.Background(), writeDoc(t), c, opts, logger.Discard()); err == nil {
		t.Fatal("expected error for missing top_k")
	}
}

type oneToolReasoner struct{ turn int }

func (r *oneToolReasoner) Reason(ctx context.Context, system string, messages []agent.Message, tools []agent.ToolSpec) (agent.Message, error) {
	r.turn++
	if r.turn == 1 {
		return agent.Message{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{{
			ID: "call_1", Name: agent.ToolAcrossLevels, Arguments: `{"query":"market cheese","high_level":4,"low_level":1}`,
		}}}, nil
	}
	last := messages[len(messages)-1]
	return agent.Message{Role: agent.RoleAssistant, Content: "found: " + last.Content}, nil
}

func TestSystem_SessionUsesTools(t *testing.T) {
	sum := &countingSummarizer{inner: summarizer.NewFrequencySummarizer(2)}
	s := openTestSystem(t, writeDoc(t), t.TempDir(), sum)
	session := s.NewSession(&oneToolReasoner{}, agent.DefaultSystemPrompt(), 5)
	answer, err := session.Ask(context.Background(), "what is sold at the market?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.HasPrefix(answer, "found: ") {
		t.Fatalf("unexpected answer %q", answer)
	}
	body := strings.TrimPrefix(answer, "found: ")
	if !strings.HasPrefix(body, "Document 1:") && body != retrieval.NoRelevantInformation {
		t.Errorf("unexpected tool result %q", body)
	}
}
