package index

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"hrag/internal/domain"
)

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// lexicalSearch ranks chunks by token-set overlap with the query. It is the
// fallback when embeddings carry no signal for the query.
func lexicalSearch(chunks []domain.Chunk, query string, topK int, filter map[int]struct{}) []domain.SearchResult {
	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, 0, len(chunks))
	for i, ch := range chunks {
		if filter != nil {
			if _, ok := filter[ch.Index]; !ok {
				continue
			}
		}
		scores = append(scores, pair{i, overlapOchiai(qset, ch.Content)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Chunk: chunks[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlapOchiai(qset map[string]struct{}, text string) float64 {
	stoks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(stoks))
	inter := 0
	for _, t := range stoks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	// Ochiai coefficient: |A∩B| / sqrt(|A||B|)
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
