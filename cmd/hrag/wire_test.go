package main

import (
	"os"
	"path/filepath"
	"testing"

	"hrag/internal/backup"
	"hrag/internal/backup/sqlite"
	"hrag/internal/chunker"
	"hrag/internal/config"
	"hrag/internal/embedding/tfidf"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Backup.Dir = t.TempDir()
	return cfg
}

func TestNewBackup_ScopedPerDocument(t *testing.T) {
	cfg := testConfig(t)
	store, err := newBackup(cfg, "/data/annual report.pdf")
	if err != nil {
		t.Fatalf("newBackup: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*backup.JSONL); !ok {
		t.Fatalf("expected JSONL store, got %T", store)
	}
	if _, err := os.Stat(filepath.Join(cfg.Backup.Dir, "annual report")); err != nil {
		t.Errorf("expected per-document backup dir: %v", err)
	}

	cfg.Backup.Type = "sqlite"
	db, err := newBackup(cfg, "notes.md")
	if err != nil {
		t.Fatalf("newBackup sqlite: %v", err)
	}
	defer db.Close()
	if _, ok := db.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", db)
	}
	if _, err := os.Stat(filepath.Join(cfg.Backup.Dir, "notes", "hierarchy.db")); err != nil {
		t.Errorf("expected sqlite file under document dir: %v", err)
	}
}

func TestWire_DefaultsSelectLocalComponents(t *testing.T) {
	cfg := testConfig(t)
	emb, err := newEmbedder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*tfidf.Embedder); !ok {
		t.Errorf("expected tfidf embedder, got %T", emb)
	}
	ch, err := newChunker(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ch.(*chunker.RecursiveChunker); !ok {
		t.Errorf("expected recursive chunker, got %T", ch)
	}
	stores, err := newStores(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(stores) != 5 {
		t.Errorf("expected 5 stores, got %d", len(stores))
	}
	k := topK(cfg)
	if k[1] != 10 || k[5] != 5 {
		t.Errorf("unexpected top_k %v", k)
	}
	g := groupSizes(cfg)
	if g[2] != 5 || g[3] != 3 || len(g) != 4 {
		t.Errorf("unexpected group sizes %v", g)
	}
}

func TestNewSummarizer_OpenAIRequiresKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Summarizer.Type = "openai"
	cfg.LLM.APIKeyEnv = "HRAG_TEST_UNSET_KEY"
	t.Setenv("HRAG_TEST_UNSET_KEY", "")
	if _, err := newSummarizer(cfg); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestRunSearch_FlagValidation(t *testing.T) {
	defer func() { searchLevel, searchHigh, searchLow, searchCite = 0, 0, 0, false }()

	searchLevel, searchHigh = 0, 0
	if err := runSearch(searchCmd, []string{"doc.txt", "q"}); err == nil {
		t.Error("expected error without a mode")
	}
	searchLevel, searchHigh = 2, 3
	if err := runSearch(searchCmd, []string{"doc.txt", "q"}); err == nil {
		t.Error("expected error for --level with --high")
	}
	searchLevel, searchHigh, searchLow = 0, 3, 0
	if err := runSearch(searchCmd, []string{"doc.txt", "q"}); err == nil {
		t.Error("expected error for --high without --low")
	}
}
