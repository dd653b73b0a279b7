// Package sqlite keeps the built hierarchy in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"hrag/internal/domain"
)

// Store persists chunks as one row per (level, chunk_index). The group index
// column holds the comma-delimited GroupIndex encoding.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	s := &Store{conn: conn}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize backup schema: %w", err)
	}
	return s, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			level INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			group_index TEXT NOT NULL DEFAULT '',
			page INTEGER,
			PRIMARY KEY (level, chunk_index)
		);
		CREATE TABLE IF NOT EXISTS levels (
			level INTEGER PRIMARY KEY,
			chunk_count INTEGER NOT NULL
		);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Store) Load(ctx context.Context, level int) ([]domain.Chunk, bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT chunk_count FROM levels WHERE level = ?`, level).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT chunk_index, content, group_index, page FROM chunks WHERE level = ? ORDER BY chunk_index`, level)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, count)
	for rows.Next() {
		var (
			c     = domain.Chunk{Level: level}
			group string
			page  sql.NullInt64
		)
		if err := rows.Scan(&c.Index, &c.Content, &group, &page); err != nil {
			return nil, false, err
		}
		c.GroupIndex, err = domain.ParseGroupIndex(group)
		if err != nil {
			return nil, false, fmt.Errorf("level %d chunk %d: %w", level, c.Index, err)
		}
		if page.Valid {
			c.Page = int(page.Int64)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(chunks) != count {
		return nil, false, fmt.Errorf("level %d: expected %d chunks, found %d", level, count, len(chunks))
	}
	return chunks, true, nil
}

// Save replaces every row of the level in one transaction.
func (s *Store) Save(ctx context.Context, level int, chunks []domain.Chunk) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE level = ?`, level); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (level, chunk_index, content, group_index, page) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		var page any
		if c.Page > 0 {
			page = c.Page
		}
		if _, err := stmt.ExecContext(ctx, level, c.Index, c.Content, c.GroupIndex.Encode(), page); err != nil {
			return fmt.Errorf("insert level %d chunk %d: %w", level, c.Index, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO levels (level, chunk_count) VALUES (?, ?)`, level, len(chunks)); err != nil {
		return err
	}
	return tx.Commit()
}
