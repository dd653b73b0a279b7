package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	oai "github.com/openai/openai-go"

	"hrag/internal/agent"
	"hrag/internal/backup"
	"hrag/internal/backup/sqlite"
	"hrag/internal/chunker"
	"hrag/internal/config"
	"hrag/internal/domain"
	"hrag/internal/embedding/openai"
	"hrag/internal/embedding/tfidf"
	"hrag/internal/hierarchy"
	"hrag/internal/llm"
	"hrag/internal/retrieval"
	"hrag/internal/service"
	"hrag/internal/summarizer"
	"hrag/internal/vectorstore"
	"hrag/internal/vectorstore/memory"
	"hrag/internal/vectorstore/qdrant"
)

// buildFlags are shared by every command that opens a document.
type buildFlags struct {
	rebuild bool
	reindex bool
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		if t := cfg.Embedder.TFIDF; t != nil {
			return tfidf.NewEmbedderWithOptions(tfidf.Options{MinDF: t.MinDF, MaxFeatures: t.MaxFeatures, Sublinear: t.Sublinear}), nil
		}
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "recursive":
		return chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

func newStores(cfg *config.AppConfig) (map[int]vectorstore.Storage, error) {
	stores := make(map[int]vectorstore.Storage, domain.MaxLevel)
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		switch cfg.VectorStore.Type {
		case "memory":
			stores[level] = memory.NewStorage()
		case "qdrant":
			q := cfg.VectorStore.Qdrant
			stores[level] = qdrant.NewStorage(qdrant.Config{
				URL:        q.URL,
				APIKey:     q.APIKey,
				Collection: qdrant.CollectionName(q.Collection, level),
				Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
			})
		default:
			return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
		}
	}
	return stores, nil
}

func newLLMClient(cfg *config.AppConfig) (oai.Client, error) {
	return llm.NewClient(llm.Config{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		Endpoint:   cfg.LLM.Endpoint,
		APIVersion: cfg.LLM.APIVersion,
		APIKeyEnv:  cfg.LLM.APIKeyEnv,
		Timeout:    time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		MaxRetries: 3,
	})
}

func newSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency":
		return summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences), nil
	case "openai":
		client, err := newLLMClient(cfg)
		if err != nil {
			return nil, err
		}
		return llm.NewSummarizer(client, cfg.LLM.SummaryModel), nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
}

// newBackup opens the backup store for the document at docPath. Backups live
// in a subdirectory named after the document so several documents can share
// one backup dir.
func newBackup(cfg *config.AppConfig, docPath string) (backup.Store, error) {
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	dir := filepath.Join(cfg.Backup.Dir, stem)
	switch cfg.Backup.Type {
	case "jsonl":
		return backup.NewJSONL(dir)
	case "sqlite":
		return sqlite.Open(filepath.Join(dir, filepath.Base(cfg.Backup.Path)))
	case "none":
		return backup.None{}, nil
	default:
		return nil, fmt.Errorf("unknown backup type: %s", cfg.Backup.Type)
	}
}

func newReasoner(cfg *config.AppConfig) (agent.Reasoner, error) {
	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewReasoner(client, cfg.LLM.ChatModel), nil
}

func groupSizes(cfg *config.AppConfig) map[int]int {
	out := make(map[int]int, domain.MaxLevel)
	for level := domain.MinLevel + 1; level <= domain.MaxLevel; level++ {
		out[level] = cfg.GroupSize(level)
	}
	return out
}

func topK(cfg *config.AppConfig) map[int]int {
	out := make(map[int]int, domain.MaxLevel)
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		out[level] = cfg.TopK(level)
	}
	return out
}

// openSystem wires every collaborator from cfg and opens the document. The
// returned function releases the backup store.
func openSystem(ctx context.Context, cfg *config.AppConfig, docPath string, flags buildFlags, log *slog.Logger) (*service.System, func(), error) {
	ch, err := newChunker(cfg)
	if err != nil {
		return nil, nil, err
	}
	sum, err := newSummarizer(cfg)
	if err != nil {
		return nil, nil, err
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}
	stores, err := newStores(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := newBackup(cfg, docPath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close backup store", "error", err)
		}
	}

	sys, err := service.Open(ctx, docPath, service.Components{
		Chunker:    ch,
		Summarizer: sum,
		Embedder:   emb,
		Backup:     store,
		Stores:     stores,
	}, service.Options{
		MinPageChars: cfg.Chunker.MinPageChars,
		Hierarchy: hierarchy.Options{
			GroupSizes:    groupSizes(cfg),
			Concurrency:   cfg.Hierarchy.Concurrency,
			LogCheckpoint: cfg.Hierarchy.LogCheckpoint,
			Rebuild:       flags.rebuild,
		},
		IndexConcurrency: cfg.Hierarchy.Concurrency,
		Reindex:          flags.reindex,
		TopK:             topK(cfg),
		Retrieval: retrieval.Options{
			Policy:           retrieval.EmptyMatchPolicy(cfg.Retrieval.EmptyMatchPolicy),
			BatchConcurrency: cfg.Retrieval.BatchConcurrency,
		},
	}, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return sys, closeFn, nil
}
