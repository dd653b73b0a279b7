package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hrag/internal/domain"
)

// JSONL keeps one "chunks_level_N.jsonl" file per level in a directory.
type JSONL struct {
	dir string
}

func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &JSONL{dir: dir}, nil
}

func (s *JSONL) path(level int) string {
	return filepath.Join(s.dir, fmt.Sprintf("chunks_%s.jsonl", domain.LevelName(level)))
}

func (s *JSONL) Load(ctx context.Context, level int) ([]domain.Chunk, bool, error) {
	f, err := os.Open(s.path(level))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var chunks []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, false, fmt.Errorf("%s line %d: %w", s.path(level), line, err)
		}
		if r.Level != level {
			return nil, false, fmt.Errorf("%s line %d: record is level %d", s.path(level), line, r.Level)
		}
		chunks = append(chunks, r.chunk())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	return chunks, true, nil
}

// Save replaces the level file atomically.
func (s *JSONL) Save(ctx context.Context, level int, chunks []domain.Chunk) error {
	tmp, err := os.CreateTemp(s.dir, "chunks-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(toRecord(c)); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(level))
}

func (s *JSONL) Close() error { return nil }
