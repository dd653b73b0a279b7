package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hrag/internal/domain"
	"hrag/internal/retrieval"
)

type levelRequest struct {
	Query string `json:"query"`
	Level int    `json:"level"`
}

type rangeRequest struct {
	Query     string `json:"query"`
	HighLevel int    `json:"high_level"`
	LowLevel  int    `json:"low_level"`
}

type citeRequest struct {
	Keyword   string `json:"keyword"`
	HighLevel int    `json:"high_level"`
}

type batchRequest struct {
	Queries []rangeRequest `json:"queries"`
}

type chunkView struct {
	Level      int    `json:"level"`
	Index      int    `json:"chunk_index"`
	Page       int    `json:"page"`
	GroupIndex []int  `json:"group_index"`
	Content    string `json:"content"`
}

type searchResponse struct {
	Text    string             `json:"text"`
	Chunks  []chunkView        `json:"chunks"`
	Descent *retrieval.Descent `json:"descent,omitempty"`
}

type citeResponse struct {
	Text      string               `json:"text"`
	Citations []retrieval.Citation `json:"citations"`
	Descent   *retrieval.Descent   `json:"descent,omitempty"`
}

type batchItem struct {
	searchResponse
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSearchLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	chunks, err := s.engine.ByLevel(r.Context(), req.Query, req.Level)
	if err != nil {
		s.searchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Text: retrieval.FormatPassages(chunks), Chunks: viewChunks(chunks)})
}

func (s *Server) handleSearchRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	chunks, descent, err := s.engine.AcrossLevels(r.Context(), req.Query, req.HighLevel, req.LowLevel)
	if err != nil {
		s.searchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Text:    retrieval.FormatPassages(chunks),
		Chunks:  viewChunks(chunks),
		Descent: descent,
	})
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		jsonError(w, "queries is required", http.StatusBadRequest)
		return
	}
	if len(req.Queries) > s.maxBatch {
		jsonError(w, fmt.Sprintf("batch exceeds %d queries", s.maxBatch), http.StatusBadRequest)
		return
	}
	queries := make([]retrieval.RangeQuery, len(req.Queries))
	for i, q := range req.Queries {
		queries[i] = retrieval.RangeQuery{Query: q.Query, High: q.HighLevel, Low: q.LowLevel}
	}
	results, err := s.engine.AcrossLevelsBatch(r.Context(), queries)
	if err != nil {
		s.searchError(w, err)
		return
	}
	items := make([]batchItem, len(results))
	for i, res := range results {
		if res.Err != nil {
			items[i].Error = errorText(res.Err)
			continue
		}
		items[i].searchResponse = searchResponse{
			Text:    retrieval.FormatPassages(res.Chunks),
			Chunks:  viewChunks(res.Chunks),
			Descent: res.Descent,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

func (s *Server) handleCite(w http.ResponseWriter, r *http.Request) {
	var req citeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		jsonError(w, "keyword is required", http.StatusBadRequest)
		return
	}
	citations, descent, err := s.engine.Cite(r.Context(), req.Keyword, req.HighLevel)
	if err != nil {
		s.searchError(w, err)
		return
	}
	if citations == nil {
		citations = []retrieval.Citation{}
	}
	writeJSON(w, http.StatusOK, citeResponse{
		Text:      retrieval.FormatCitations(citations),
		Citations: citations,
		Descent:   descent,
	})
}

// searchError maps retrieval errors onto status codes.
func (s *Server) searchError(w http.ResponseWriter, err error) {
	var rangeErr *domain.InvalidRangeError
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.As(err, &rangeErr):
		jsonError(w, retrieval.InvalidRangeMessage, http.StatusUnprocessableEntity)
	case errors.As(err, &cfgErr):
		jsonError(w, cfgErr.Error(), http.StatusBadRequest)
	default:
		s.log.Error("Search failed", "error", err)
		jsonError(w, "search failed", http.StatusBadGateway)
	}
}

func errorText(err error) string {
	var rangeErr *domain.InvalidRangeError
	if errors.As(err, &rangeErr) {
		return retrieval.InvalidRangeMessage
	}
	return err.Error()
}

func viewChunks(chunks []domain.Chunk) []chunkView {
	out := make([]chunkView, len(chunks))
	for i, c := range chunks {
		g := []int(c.GroupIndex)
		if g == nil {
			g = []int{}
		}
		out[i] = chunkView{Level: c.Level, Index: c.Index, Page: c.Page, GroupIndex: g, Content: c.Content}
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
