package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"hrag/internal/domain"
	"hrag/internal/hierarchy"
	"hrag/internal/vectorstore"
)

const upsertBatch = 256

// Indexer embeds every level of a hierarchy into its own vector store.
type Indexer struct {
	embedder    domain.Embedder
	stores      map[int]vectorstore.Storage
	concurrency int
	logger      *slog.Logger
}

// NewIndexer requires a store for every level 1..5.
func NewIndexer(embedder domain.Embedder, stores map[int]vectorstore.Storage, concurrency int, logger *slog.Logger) (*Indexer, error) {
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		if stores[level] == nil {
			return nil, fmt.Errorf("no vector store for %s", domain.LevelName(level))
		}
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, stores: stores, concurrency: concurrency, logger: logger}, nil
}

// corpusDependent is implemented by embedders whose vectors change with the
// corpus they were prepared on.
type corpusDependent interface {
	CorpusDependent() bool
}

// Index prepares the embedder on the whole hierarchy and embeds each level.
// A level is reused only when its store holds as many points as the level has
// chunks and was indexed from the same content, unless reindex is set.
func (ix *Indexer) Index(ctx context.Context, h *hierarchy.Hierarchy, reindex bool) (map[int]*LevelIndex, error) {
	corpus := h.Corpus()
	if len(corpus) == 0 {
		return nil, errors.New("empty hierarchy")
	}
	if err := ix.embedder.Prepare(corpus); err != nil {
		return nil, fmt.Errorf("prepare embedder: %w", err)
	}

	out := make(map[int]*LevelIndex, domain.MaxLevel)
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		out[level] = NewLevelIndex(level, ix.embedder, ix.stores[level], h.Level(level))
	}

	var corpusDigest string
	if cd, ok := ix.embedder.(corpusDependent); ok && cd.CorpusDependent() {
		sum := sha256.New()
		for _, text := range corpus {
			sum.Write([]byte(text))
			sum.Write([]byte{0})
		}
		corpusDigest = hex.EncodeToString(sum.Sum(nil))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		chunks := h.Level(level)
		store := ix.stores[level]
		fp := ix.fingerprint(chunks, corpusDigest)
		g.Go(func() error {
			if !reindex {
				reuse, err := ix.upToDate(gctx, store, len(chunks), fp)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", domain.LevelName(level), err)
				}
				if reuse {
					ix.logger.Info("Using existing index", "level", level, "points", len(chunks))
					return nil
				}
			}
			return ix.indexLevel(gctx, level, chunks, store, fp)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ix *Indexer) upToDate(ctx context.Context, store vectorstore.Storage, want int, fp string) (bool, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return false, err
	}
	if n != want || n == 0 {
		return false, nil
	}
	stored, err := store.Fingerprint(ctx)
	if err != nil {
		return false, err
	}
	return stored == fp, nil
}

// fingerprint digests everything a level's vectors are derived from.
func (ix *Indexer) fingerprint(chunks []domain.Chunk, corpusDigest string) string {
	sum := sha256.New()
	field := func(v string) {
		sum.Write([]byte(v))
		sum.Write([]byte{0})
	}
	field(ix.embedder.Name())
	field(strconv.Itoa(ix.embedder.Dimension()))
	field(corpusDigest)
	for _, c := range chunks {
		field(strconv.Itoa(c.Index))
		field(strconv.Itoa(c.Page))
		field(c.Content)
		for _, g := range c.GroupIndex {
			field(strconv.Itoa(g))
		}
		field("")
	}
	return hex.EncodeToString(sum.Sum(nil))
}

func (ix *Indexer) indexLevel(ctx context.Context, level int, chunks []domain.Chunk, store vectorstore.Storage, fp string) error {
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", domain.LevelName(level), err)
	}
	if len(chunks) == 0 {
		return nil
	}
	vectors := make([][]float64, len(chunks))
	for i, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embed %s chunk %d: %w", domain.LevelName(level), c.Index, err)
		}
		vectors[i] = vec
	}
	if err := store.Init(ctx, len(vectors[0]), fp); err != nil {
		return fmt.Errorf("init %s: %w", domain.LevelName(level), err)
	}
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		if err := store.Upsert(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return fmt.Errorf("upsert %s: %w", domain.LevelName(level), err)
		}
	}
	ix.logger.Info("Indexed level", "level", level, "chunks", len(chunks))
	return nil
}
