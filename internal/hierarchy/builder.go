package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"hrag/internal/backup"
	"hrag/internal/domain"
	"hrag/internal/metrics"
)

// Options configures a Builder.
type Options struct {
	// GroupSizes maps a level L >= 2 to the number of level L-1 chunks per group.
	GroupSizes    map[int]int
	Concurrency   int
	LogCheckpoint int
	// Rebuild ignores existing backups.
	Rebuild bool
}

// Builder produces a Hierarchy from a document, reusing backed-up levels.
type Builder struct {
	chunker    domain.Chunker
	summarizer domain.Summarizer
	store      backup.Store
	opts       Options
	logger     *slog.Logger
}

func NewBuilder(chunker domain.Chunker, summarizer domain.Summarizer, store backup.Store, opts Options, logger *slog.Logger) (*Builder, error) {
	for level := domain.MinLevel + 1; level <= domain.MaxLevel; level++ {
		if opts.GroupSizes[level] <= 0 {
			return nil, fmt.Errorf("missing group size for %s", domain.LevelName(level))
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.LogCheckpoint <= 0 {
		opts.LogCheckpoint = 10
	}
	if store == nil {
		store = backup.None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{chunker: chunker, summarizer: summarizer, store: store, opts: opts, logger: logger}, nil
}

// Build returns levels 1..5 for doc. A level is restored from backup when
// one exists and no finer level had to be regenerated; otherwise it is built
// and saved.
func (b *Builder) Build(ctx context.Context, doc domain.Document) (*Hierarchy, error) {
	h := New()
	regenerated := b.opts.Rebuild
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		if !regenerated {
			chunks, ok, err := b.store.Load(ctx, level)
			if err != nil {
				return nil, fmt.Errorf("load backup %s: %w", domain.LevelName(level), err)
			}
			if ok {
				b.logger.Info("Using backup level", "level", level, "chunks", len(chunks))
				h.Set(level, chunks)
				continue
			}
		}
		regenerated = true

		var chunks []domain.Chunk
		if level == domain.MinLevel {
			var err error
			chunks, err = b.chunker.Chunk(doc)
			if err != nil {
				return nil, fmt.Errorf("chunk document: %w", err)
			}
			if len(chunks) == 0 {
				return nil, errors.New("document produced no chunks")
			}
		} else {
			var err error
			chunks, err = b.UpLevel(ctx, h.Level(level-1), level)
			if err != nil {
				return nil, err
			}
		}
		b.logger.Info("Built level", "level", level, "chunks", len(chunks))
		if err := b.store.Save(ctx, level, chunks); err != nil {
			return nil, fmt.Errorf("save backup %s: %w", domain.LevelName(level), err)
		}
		h.Set(level, chunks)
	}
	if err := Validate(h); err != nil {
		return nil, fmt.Errorf("invalid hierarchy (rebuild to regenerate): %w", err)
	}
	return h, nil
}

// UpLevel summarizes consecutive groups of children into level chunks. Group
// i covers children [i*N, min((i+1)*N, len(children))). Groups whose summary
// fails are logged and skipped; surviving chunks are indexed densely in group
// order.
func (b *Builder) UpLevel(ctx context.Context, children []domain.Chunk, level int) ([]domain.Chunk, error) {
	n := b.opts.GroupSizes[level]
	groups := (len(children) + n - 1) / n
	if groups == 0 {
		return nil, nil
	}
	summaries := make([]string, groups)
	ok := make([]bool, groups)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i := 0; i < groups; i++ {
		texts := make([]string, 0, n)
		for _, c := range children[i*n : min((i+1)*n, len(children))] {
			texts = append(texts, c.Content)
		}
		g.Go(func() error {
			summary, err := b.summarizer.Summarize(gctx, texts)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.recordFailure(&domain.SummarizationFailure{
					Level:         level,
					Group:         i,
					ContentPolicy: errors.Is(err, domain.ErrContentFiltered),
					Err:           err,
				})
			} else {
				summaries[i] = summary
				ok[i] = true
			}
			if d := done.Add(1); d%int64(b.opts.LogCheckpoint) == 0 {
				b.logger.Info("Summarizing", "level", level, "done", d, "groups", groups)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build %s: %w", domain.LevelName(level), err)
	}

	out := make([]domain.Chunk, 0, groups)
	for i := 0; i < groups; i++ {
		if !ok[i] {
			continue
		}
		group := make(domain.GroupIndex, 0, n)
		for _, c := range children[i*n : min((i+1)*n, len(children))] {
			group = append(group, c.Index)
		}
		out = append(out, domain.Chunk{
			Level:      level,
			Index:      len(out),
			Content:    summaries[i],
			GroupIndex: group,
		})
	}
	return out, nil
}

func (b *Builder) recordFailure(f *domain.SummarizationFailure) {
	kind := "error"
	if f.ContentPolicy {
		kind = "content_policy"
	}
	metrics.SummarizationFailuresTotal.WithLabelValues(strconv.Itoa(f.Level), kind).Inc()
	b.logger.Warn("Skipping group", "level", f.Level, "group", f.Group, "kind", kind, "err", f.Err)
}
