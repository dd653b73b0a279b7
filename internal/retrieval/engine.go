package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hrag/internal/domain"
	"hrag/internal/metrics"
)

// EmptyMatchPolicy decides the restriction after an intermediate level
// returns no matches.
type EmptyMatchPolicy string

const (
	// PolicyRetain keeps the restriction that was active entering the level.
	PolicyRetain EmptyMatchPolicy = "retain"
	// PolicyReset drops back to an unrestricted search.
	PolicyReset EmptyMatchPolicy = "reset"
)

// Step records one search of a descent.
type Step struct {
	Level       int   `json:"level"`
	Restriction []int `json:"restriction"`
	Matches     int   `json:"matches"`
}

// Descent is the trace of a narrowing query, coarsest level first. The last
// step is the final search at the low level.
type Descent struct {
	Steps []Step `json:"steps"`
}

// Citation is a level-1 passage with its source page.
type Citation struct {
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// Engine runs flat and narrowing queries over a registry of level retrievers.
type Engine struct {
	retrievers       map[string]*Retriever
	policy           EmptyMatchPolicy
	batchConcurrency int
	logger           *slog.Logger
}

// Options configures an Engine.
type Options struct {
	Policy           EmptyMatchPolicy
	BatchConcurrency int
}

// NewEngine registers retrievers under their level names. Every level from
// MinLevel to MaxLevel must be present.
func NewEngine(retrievers []*Retriever, opts Options, logger *slog.Logger) (*Engine, error) {
	m := make(map[string]*Retriever, len(retrievers))
	for _, r := range retrievers {
		m[domain.LevelName(r.Level())] = r
	}
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		if _, ok := m[domain.LevelName(level)]; !ok {
			return nil, &domain.ConfigurationError{Level: domain.LevelName(level)}
		}
	}
	switch opts.Policy {
	case "":
		opts.Policy = PolicyRetain
	case PolicyRetain, PolicyReset:
	default:
		return nil, fmt.Errorf("unknown empty match policy %q", opts.Policy)
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{retrievers: m, policy: opts.Policy, batchConcurrency: opts.BatchConcurrency, logger: logger}, nil
}

// Retriever looks up a level by name, e.g. "level_3".
func (e *Engine) Retriever(name string) (*Retriever, error) {
	r, ok := e.retrievers[name]
	if !ok {
		return nil, &domain.ConfigurationError{Level: name}
	}
	return r, nil
}

// ByLevel searches exactly one level without restriction.
func (e *Engine) ByLevel(ctx context.Context, query string, level int) ([]domain.Chunk, error) {
	r, err := e.Retriever(domain.LevelName(level))
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, query, nil)
}

// AcrossLevels narrows from high down to low and returns the final low-level
// matches. Each intermediate level with matches replaces the restriction with
// the concatenated group_index of its matches.
func (e *Engine) AcrossLevels(ctx context.Context, query string, high, low int) ([]domain.Chunk, *Descent, error) {
	if low >= high {
		return nil, nil, &domain.InvalidRangeError{High: high, Low: low}
	}
	retrievers := make([]*Retriever, 0, high-low+1)
	for level := high; level >= low; level-- {
		r, err := e.Retriever(domain.LevelName(level))
		if err != nil {
			return nil, nil, err
		}
		retrievers = append(retrievers, r)
	}

	ctx, span := tracer.Start(ctx, "retrieval.narrow", trace.WithAttributes(
		attribute.Int("high_level", high),
		attribute.Int("low_level", low),
		attribute.String("policy", string(e.policy)),
	))
	defer span.End()

	descent := &Descent{Steps: make([]Step, 0, len(retrievers))}
	var active []int
	for _, r := range retrievers[:len(retrievers)-1] {
		matches, err := r.Search(ctx, query, active)
		if err != nil {
			return nil, descent, err
		}
		descent.Steps = append(descent.Steps, Step{Level: r.Level(), Restriction: active, Matches: len(matches)})
		if len(matches) == 0 {
			metrics.NarrowingEmptyLevelsTotal.WithLabelValues(fmt.Sprint(r.Level())).Inc()
			if e.policy == PolicyReset {
				active = nil
			}
			continue
		}
		active = restrictionOf(matches)
	}

	final := retrievers[len(retrievers)-1]
	matches, err := final.Search(ctx, query, active)
	if err != nil {
		return nil, descent, err
	}
	descent.Steps = append(descent.Steps, Step{Level: final.Level(), Restriction: active, Matches: len(matches)})
	e.logger.Debug("Narrowing descent", "high", high, "low", low, "steps", descent.Steps)
	return matches, descent, nil
}

// Cite narrows from high down to level 1 and returns the matched raw passages
// with their pages.
func (e *Engine) Cite(ctx context.Context, keyword string, high int) ([]Citation, *Descent, error) {
	chunks, descent, err := e.AcrossLevels(ctx, keyword, high, domain.MinLevel)
	if err != nil {
		return nil, descent, err
	}
	out := make([]Citation, len(chunks))
	for i, c := range chunks {
		out[i] = Citation{Page: c.Page, Content: c.Content}
	}
	return out, descent, nil
}

// restrictionOf concatenates the group_index of matches in match order.
func restrictionOf(matches []domain.Chunk) []int {
	n := 0
	for _, m := range matches {
		n += len(m.GroupIndex)
	}
	out := make([]int, 0, n)
	for _, m := range matches {
		out = append(out, m.GroupIndex...)
	}
	return out
}
