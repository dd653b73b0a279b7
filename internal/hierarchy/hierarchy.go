// Package hierarchy builds the multi-resolution chunk tree: level 1 holds raw
// text chunks and each coarser level summarizes fixed-size groups of the
// level below it.
package hierarchy

import (
	"fmt"
	"sort"

	"hrag/internal/domain"
)

// Hierarchy holds the chunks of every built level. It is read-only once
// Build returns.
type Hierarchy struct {
	levels map[int][]domain.Chunk
}

func New() *Hierarchy {
	return &Hierarchy{levels: make(map[int][]domain.Chunk)}
}

// Set stores the chunks of a level, replacing any previous ones.
func (h *Hierarchy) Set(level int, chunks []domain.Chunk) {
	h.levels[level] = chunks
}

// Level returns the chunks of level in chunk_index order.
func (h *Hierarchy) Level(level int) []domain.Chunk {
	return h.levels[level]
}

// Levels returns the built levels in ascending order.
func (h *Hierarchy) Levels() []int {
	out := make([]int, 0, len(h.levels))
	for l := range h.levels {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Corpus returns the content of every chunk of every level.
func (h *Hierarchy) Corpus() []string {
	var out []string
	for _, l := range h.Levels() {
		for _, c := range h.levels[l] {
			out = append(out, c.Content)
		}
	}
	return out
}

// Validate checks that every level is densely indexed and that every
// group_index entry of a level L >= 2 chunk names an existing level L-1 chunk.
func Validate(h *Hierarchy) error {
	for _, level := range h.Levels() {
		if !domain.ValidLevel(level) {
			return fmt.Errorf("unexpected level %d", level)
		}
		chunks := h.levels[level]
		for i, c := range chunks {
			if c.Level != level {
				return fmt.Errorf("%s chunk %d: recorded level %d", domain.LevelName(level), i, c.Level)
			}
			if c.Index != i {
				return fmt.Errorf("%s: chunk at position %d has chunk_index %d", domain.LevelName(level), i, c.Index)
			}
			if level == domain.MinLevel {
				if len(c.GroupIndex) > 0 {
					return fmt.Errorf("%s chunk %d: level 1 chunks have no group_index", domain.LevelName(level), i)
				}
				continue
			}
			children, ok := h.levels[level-1]
			if !ok {
				return fmt.Errorf("%s present without %s", domain.LevelName(level), domain.LevelName(level-1))
			}
			for _, g := range c.GroupIndex {
				if g < 0 || g >= len(children) {
					return fmt.Errorf("%s chunk %d: group_index %d outside %s (%d chunks)",
						domain.LevelName(level), i, g, domain.LevelName(level-1), len(children))
				}
			}
		}
	}
	return nil
}
