// Package service assembles a loaded document, its hierarchy, the level
// indexes and the retrieval engine into one runnable system.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hrag/internal/agent"
	"hrag/internal/backup"
	"hrag/internal/domain"
	"hrag/internal/hierarchy"
	"hrag/internal/index"
	"hrag/internal/loader"
	"hrag/internal/retrieval"
	"hrag/internal/vectorstore"
)

// Components are the collaborators chosen by configuration.
type Components struct {
	Chunker    domain.Chunker
	Summarizer domain.Summarizer
	Embedder   domain.Embedder
	Backup     backup.Store
	// Stores holds one vector store per level 1..5.
	Stores map[int]vectorstore.Storage
}

// Options tunes building and searching.
type Options struct {
	MinPageChars     int
	Hierarchy        hierarchy.Options
	IndexConcurrency int
	Reindex          bool
	// TopK maps each level to the number of results per search.
	TopK      map[int]int
	Retrieval retrieval.Options
}

// System is a document ready to be searched.
type System struct {
	Document  domain.Document
	Hierarchy *hierarchy.Hierarchy
	Engine    *retrieval.Engine
	logger    *slog.Logger
}

// Open loads the document at path, builds or restores its hierarchy, indexes
// every level and registers a retriever per level.
func Open(ctx context.Context, path string, c Components, opts Options, logger *slog.Logger) (*System, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Chunker == nil || c.Summarizer == nil || c.Embedder == nil {
		return nil, errors.New("chunker, summarizer and embedder are required")
	}

	doc, err := loader.Load(path, opts.MinPageChars)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded document", "path", doc.Path, "pages", len(doc.Pages))

	builder, err := hierarchy.NewBuilder(c.Chunker, c.Summarizer, c.Backup, opts.Hierarchy, logger)
	if err != nil {
		return nil, err
	}
	h, err := builder.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}

	indexer, err := index.NewIndexer(c.Embedder, c.Stores, opts.IndexConcurrency, logger)
	if err != nil {
		return nil, err
	}
	indexes, err := indexer.Index(ctx, h, opts.Reindex)
	if err != nil {
		return nil, fmt.Errorf("index hierarchy: %w", err)
	}

	retrievers := make([]*retrieval.Retriever, 0, len(indexes))
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		k := opts.TopK[level]
		if k <= 0 {
			return nil, fmt.Errorf("missing top_k for %s", domain.LevelName(level))
		}
		retrievers = append(retrievers, retrieval.NewRetriever(level, k, indexes[level]))
	}
	engine, err := retrieval.NewEngine(retrievers, opts.Retrieval, logger)
	if err != nil {
		return nil, err
	}
	s := &System{Document: doc, Hierarchy: h, Engine: engine, logger: logger}
	logger.Info("Document ready", "levels", s.Counts())
	return s, nil
}

// Counts returns the number of chunks per level.
func (s *System) Counts() map[int]int {
	out := make(map[int]int, domain.MaxLevel)
	for _, level := range s.Hierarchy.Levels() {
		out[level] = len(s.Hierarchy.Level(level))
	}
	return out
}

// NewSession starts a conversation whose tools search this system.
func (s *System) NewSession(reasoner agent.Reasoner, systemPrompt string, maxTurns int) *agent.Session {
	loop := agent.NewLoop(reasoner, agent.NewToolbox(s.Engine), systemPrompt, maxTurns, s.logger)
	return agent.NewSession(loop)
}
