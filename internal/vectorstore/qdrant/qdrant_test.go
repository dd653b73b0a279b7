package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hrag/internal/domain"
)

func TestCollectionName(t *testing.T) {
	if got := CollectionName("hrag", 3); got != "hrag_level_3" {
		t.Errorf("unexpected collection name %q", got)
	}
}

func TestPointID_Stable(t *testing.T) {
	if pointID(2, 7) != pointID(2, 7) {
		t.Error("expected stable point id")
	}
	if pointID(2, 7) == pointID(3, 7) {
		t.Error("expected distinct ids across levels")
	}
}

func TestSearch_SendsFilterAndDecodesPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/collections/hrag_level_2/points/search") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":[{"score":0.9,"payload":{"level":2,"chunk_index":1,"content":"summary","group_index":[3,4,5]}}]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, APIKey: "k", Collection: CollectionName("hrag", 2)})
	res, err := s.Search(context.Background(), []float64{1, 0}, 7, []int{1, 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}
	c := res[0].Chunk
	if c.Index != 1 || c.Level != 2 || c.GroupIndex.Encode() != "3,4,5" {
		t.Errorf("unexpected chunk %+v", c)
	}
	filter, ok := got["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter in request, got %v", got)
	}
	must := filter["must"].([]any)[0].(map[string]any)
	if must["key"] != "chunk_index" {
		t.Errorf("unexpected filter key %v", must["key"])
	}
	if got["limit"].(float64) != 7 {
		t.Errorf("unexpected limit %v", got["limit"])
	}
}

func TestSearch_NoFilterWhenUnrestricted(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	if _, err := s.Search(context.Background(), []float64{1}, 3, nil); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, ok := got["filter"]; ok {
		t.Errorf("unexpected filter in unrestricted request: %v", got)
	}
}

func TestCount_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	n, err := s.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("expected 0, nil; got %d, %v", n, err)
	}
}

func TestInit_CreatesWhenMissing(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			_, _ = w.Write([]byte(`{"result":true}`))
		}
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	if err := s.Init(context.Background(), 4, "fp"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !created {
		t.Error("expected collection to be created")
	}
}

func TestUpsert_PayloadCarriesGroupIndex(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string  `json:"id"`
			Payload payload `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	s.fingerprint = "fp-1"
	chunks := []domain.Chunk{{Level: 2, Index: 0, Content: "x", GroupIndex: domain.GroupIndex{0, 1, 2}}}
	if err := s.Upsert(context.Background(), chunks, [][]float64{{1, 0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(got.Points) != 1 || len(got.Points[0].Payload.GroupIndex) != 3 {
		t.Errorf("unexpected upsert body %+v", got)
	}
	if got.Points[0].Payload.Fingerprint != "fp-1" {
		t.Errorf("expected fingerprint on payload, got %q", got.Points[0].Payload.Fingerprint)
	}
	if got.Points[0].ID != pointID(2, 0) {
		t.Errorf("unexpected point id %q", got.Points[0].ID)
	}
}

func TestFingerprint_ReadsFirstPoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/collections/c/points/scroll") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"result":{"points":[{"id":"x","payload":{"fingerprint":"abc"}}]}}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	fp, err := s.Fingerprint(context.Background())
	if err != nil || fp != "abc" {
		t.Fatalf("expected abc, got %q, %v", fp, err)
	}
	if got["limit"].(float64) != 1 {
		t.Errorf("unexpected scroll request %v", got)
	}
}

func TestFingerprint_MissingCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "c"})
	fp, err := s.Fingerprint(context.Background())
	if err != nil || fp != "" {
		t.Errorf("expected empty fingerprint, got %q, %v", fp, err)
	}
}
