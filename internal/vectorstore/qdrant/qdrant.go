// Package qdrant stores one hierarchy level in a Qdrant collection over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"hrag/internal/domain"
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url         string
	apiKey      string
	collection  string
	client      *http.Client
	fingerprint string
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// CollectionName returns the per-level collection name for base.
func CollectionName(base string, level int) string {
	return base + "_" + domain.LevelName(level)
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type payload struct {
	Level      int               `json:"level"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	GroupIndex domain.GroupIndex `json:"group_index,omitempty"`
	Page       int               `json:"page,omitempty"`
	// stamped on every point of one indexing run
	Fingerprint string `json:"fingerprint,omitempty"`
}

// pointID derives a stable UUID so re-indexing overwrites the same points.
func pointID(level, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(domain.LevelName(level)+":"+strconv.Itoa(index))).String()
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) Init(ctx context.Context, dimension int, fingerprint string) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.fingerprint = fingerprint
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err == nil && status == http.StatusOK {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	return err
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     pointID(c.Level, c.Index),
			"vector": vectors[i],
			"payload": payload{
				Level:       c.Level,
				ChunkIndex:  c.Index,
				Content:     c.Content,
				GroupIndex:  c.GroupIndex,
				Page:        c.Page,
				Fingerprint: s.fingerprint,
			},
		}
	}
	body := map[string]any{"points": points}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
	return err
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int, filter []int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		req["filter"] = map[string]any{
			"must": []map[string]any{{
				"key":   "chunk_index",
				"match": map[string]any{"any": filter},
			}},
		}
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{
				Level:      p.Level,
				Index:      p.ChunkIndex,
				Content:    p.Content,
				GroupIndex: p.GroupIndex,
				Page:       p.Page,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// Count returns the number of points in the collection, or 0 if it does not exist.
func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Fingerprint reads the fingerprint stamped on the first stored point.
func (s *Storage) Fingerprint(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Points []struct {
				Payload payload `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	req := map[string]any{"limit": 1, "with_payload": []string{"fingerprint"}, "with_vector": false}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp)
	if status == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(resp.Result.Points) == 0 {
		return "", nil
	}
	return resp.Result.Points[0].Payload.Fingerprint, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// do sends a JSON request and decodes the response into out when given.
// The HTTP status is returned even when it is treated as an error.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
