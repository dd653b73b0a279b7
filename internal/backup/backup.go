// Package backup persists built hierarchy levels so a rebuild can reuse them.
package backup

import (
	"context"

	"hrag/internal/domain"
)

// Store saves and restores the chunks of one level at a time. Load reports
// ok=false when the level has never been saved.
type Store interface {
	Load(ctx context.Context, level int) (chunks []domain.Chunk, ok bool, err error)
	Save(ctx context.Context, level int, chunks []domain.Chunk) error
	Close() error
}

// record is the durable form of one chunk.
type record struct {
	Level      int               `json:"level"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	GroupIndex domain.GroupIndex `json:"group_index,omitempty"`
	Page       int               `json:"page,omitempty"`
}

func toRecord(c domain.Chunk) record {
	return record{Level: c.Level, ChunkIndex: c.Index, Content: c.Content, GroupIndex: c.GroupIndex, Page: c.Page}
}

func (r record) chunk() domain.Chunk {
	return domain.Chunk{Level: r.Level, Index: r.ChunkIndex, Content: r.Content, GroupIndex: r.GroupIndex, Page: r.Page}
}

// None never restores anything and discards saves.
type None struct{}

func (None) Load(ctx context.Context, level int) ([]domain.Chunk, bool, error) { return nil, false, nil }
func (None) Save(ctx context.Context, level int, chunks []domain.Chunk) error   { return nil }
func (None) Close() error                                                      { return nil }
