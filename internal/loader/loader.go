// Package loader reads the source document into cleaned pages.
package loader

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hrag/internal/domain"
)

// Parser converts raw document bytes into pages. Formats without native
// pagination number their sections as pages.
type Parser interface {
	Parse(r io.Reader, filename string) ([]domain.Page, error)
}

// SupportedExtensions lists file extensions the loader can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// Load reads path, parses it and cleans every page. Pages whose cleaned text
// is not longer than minPageChars are dropped.
func Load(path string, minPageChars int) (domain.Document, error) {
	p, err := ForFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	pages, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return domain.Document{
		ID:    hashString(path),
		Path:  path,
		Pages: CleanPages(pages, minPageChars),
	}, nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
