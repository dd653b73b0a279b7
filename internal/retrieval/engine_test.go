package retrieval

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"hrag/internal/domain"
	"hrag/internal/logger"
)

type call struct {
	query  string
	filter []int
}

// fakeLevel returns its chunks whose index is in the filter (all when the
// filter is empty), optionally limited to those listed in match.
type fakeLevel struct {
	mu     sync.Mutex
	chunks []domain.Chunk
	match  map[int]bool
	err    error
	calls  []call
}

func (f *fakeLevel) Search(ctx context.Context, query string, k int, filter []int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{query: query, filter: append([]int(nil), filter...)})
	if f.err != nil {
		return nil, f.err
	}
	allowed := map[int]bool{}
	for _, i := range filter {
		allowed[i] = true
	}
	var out []domain.SearchResult
	for _, c := range f.chunks {
		if len(filter) > 0 && !allowed[c.Index] {
			continue
		}
		if f.match != nil && !f.match[c.Index] {
			continue
		}
		out = append(out, domain.SearchResult{Chunk: c, Score: 1})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (f *fakeLevel) lastFilter(t *testing.T) []int {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("level was never searched")
	}
	return f.calls[len(f.calls)-1].filter
}

// grouped builds n chunks at level whose group_index covers groupSize
// children each.
func grouped(level, n, groupSize, children int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{Level: level, Index: i, Content: fmt.Sprintf("L%d-%d", level, i), Page: i + 1}
		if level > 1 {
			out[i].GroupIndex = domain.Range(i*groupSize, min((i+1)*groupSize, children))
		}
	}
	return out
}

type fixture struct {
	levels map[int]*fakeLevel
	engine *Engine
}

func newFixture(t *testing.T, policy EmptyMatchPolicy) *fixture {
	t.Helper()
	// 12 / 4 / 2 / 1 / 1 with group size 3 at levels 2 and 3, 2 at level 4.
	f := &fixture{levels: map[int]*fakeLevel{
		1: {chunks: grouped(1, 12, 0, 0)},
		2: {chunks: grouped(2, 4, 3, 12)},
		3: {chunks: grouped(3, 2, 3, 4)},
		4: {chunks: grouped(4, 1, 2, 2)},
		5: {chunks: grouped(5, 1, 1, 1)},
	}}
	topK := []int{10, 10, 7, 7, 5}
	var rs []*Retriever
	for l := domain.MinLevel; l <= domain.MaxLevel; l++ {
		rs = append(rs, NewRetriever(l, topK[l-1], f.levels[l]))
	}
	e, err := NewEngine(rs, Options{Policy: policy, BatchConcurrency: 3}, logger.Discard())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = e
	return f
}

func TestAcrossLevels_EndToEndGroupOfThree(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[2].match = map[int]bool{1: true}
	chunks, descent, err := f.engine.AcrossLevels(context.Background(), "q", 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.levels[1].lastFilter(t); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("expected level-1 restriction [3 4 5], got %v", got)
	}
	if len(chunks) != 3 || chunks[0].Index != 3 {
		t.Errorf("unexpected final chunks %+v", chunks)
	}
	if len(descent.Steps) != 2 || descent.Steps[1].Level != 1 {
		t.Errorf("unexpected descent %+v", descent)
	}
}

func TestAcrossLevels_NarrowingUsesLastLevelOnly(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[3].match = map[int]bool{0: true}
	f.levels[2].match = map[int]bool{2: true}
	if _, _, err := f.engine.AcrossLevels(context.Background(), "q", 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.levels[2].lastFilter(t); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("expected level-2 restriction [0 1 2], got %v", got)
	}
	// Replaced by level 2's single match, not accumulated with level 3's.
	if got := f.levels[1].lastFilter(t); !reflect.DeepEqual(got, []int{6, 7, 8}) {
		t.Errorf("expected level-1 restriction [6 7 8], got %v", got)
	}
}

func TestAcrossLevels_GroupOfFiveRestriction(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[2].chunks = grouped(2, 3, 5, 12)
	f.levels[2].match = map[int]bool{0: true, 2: true}
	if _, _, err := f.engine.AcrossLevels(context.Background(), "q", 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, 1, 2, 3, 4, 10, 11}
	if got := f.levels[1].lastFilter(t); !reflect.DeepEqual(got, want) {
		t.Errorf("expected level-1 restriction %v, got %v", want, got)
	}
}

func TestRestrictionOf_SizedToGroups(t *testing.T) {
	matches := grouped(2, 4, 5, 20)
	got := restrictionOf(matches)
	if len(got) != 20 || cap(got) != 20 {
		t.Errorf("expected len and cap 20, got %d/%d", len(got), cap(got))
	}
	if got[5] != 5 || got[19] != 19 {
		t.Errorf("unexpected restriction %v", got)
	}
}

func TestAcrossLevels_EmptyLevelRetainsRestriction(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[3].match = map[int]bool{1: true}
	f.levels[2].match = map[int]bool{}
	_, descent, err := f.engine.AcrossLevels(context.Background(), "q", 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.levels[1].lastFilter(t); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("expected level-1 restriction to stay [3], got %v", got)
	}
	if descent.Steps[1].Matches != 0 {
		t.Errorf("expected empty level 2 in trace, got %+v", descent.Steps[1])
	}
}

func TestAcrossLevels_ResetPolicy(t *testing.T) {
	f := newFixture(t, PolicyReset)
	f.levels[3].match = map[int]bool{1: true}
	f.levels[2].match = map[int]bool{}
	if _, _, err := f.engine.AcrossLevels(context.Background(), "q", 3, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.levels[1].lastFilter(t); len(got) != 0 {
		t.Errorf("expected unrestricted level-1 search, got %v", got)
	}
}

func TestAcrossLevels_InvalidRangeNeverSearches(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	for _, r := range [][2]int{{2, 3}, {3, 3}} {
		_, _, err := f.engine.AcrossLevels(context.Background(), "q", r[0], r[1])
		var ire *domain.InvalidRangeError
		if !errors.As(err, &ire) {
			t.Errorf("high=%d low=%d: expected InvalidRangeError, got %v", r[0], r[1], err)
		}
	}
	for l, lv := range f.levels {
		if len(lv.calls) != 0 {
			t.Errorf("level %d was searched %d times", l, len(lv.calls))
		}
	}
}

func TestAcrossLevels_UnknownLevelBeforeSearch(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	_, _, err := f.engine.AcrossLevels(context.Background(), "q", 7, 1)
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) || ce.Level != "level_7" {
		t.Fatalf("expected ConfigurationError for level_7, got %v", err)
	}
	for l, lv := range f.levels {
		if len(lv.calls) != 0 {
			t.Errorf("level %d was searched", l)
		}
	}
}

func TestAcrossLevels_PropagatesSearchError(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	boom := errors.New("store down")
	f.levels[2].err = boom
	if _, _, err := f.engine.AcrossLevels(context.Background(), "q", 3, 1); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCite_FixedFloorWithPages(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[2].match = map[int]bool{3: true}
	cites, descent, err := f.engine.Cite(context.Background(), "keyword", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last := descent.Steps[len(descent.Steps)-1]; last.Level != 1 {
		t.Errorf("expected descent to end at level 1, got %d", last.Level)
	}
	if len(descent.Steps) != 4 {
		t.Errorf("expected 4 steps (4,3,2,1), got %d", len(descent.Steps))
	}
	if len(cites) != 3 {
		t.Fatalf("expected 3 citations, got %d", len(cites))
	}
	for _, c := range cites {
		if c.Page < 10 || c.Page > 12 {
			t.Errorf("unexpected page %d", c.Page)
		}
	}
	if _, _, err := f.engine.Cite(context.Background(), "k", 1); err == nil {
		t.Error("expected invalid range for high_level 1")
	}
}

func TestByLevel_Unrestricted(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	got, err := f.engine.ByLevel(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("expected top_k 10 results, got %d", len(got))
	}
	if _, err := f.engine.ByLevel(context.Background(), "q", 0); err == nil {
		t.Error("expected ConfigurationError for level_0")
	}
}

func TestRetriever_NoLeakBetweenCalls(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	r, err := f.engine.Retriever("level_1")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	restricted, _ := r.Search(ctx, "q", []int{0})
	open, _ := r.Search(ctx, "q", nil)
	if len(restricted) != 1 || len(open) != 10 {
		t.Errorf("expected 1 then 10 results, got %d then %d", len(restricted), len(open))
	}
	if len(f.levels[1].calls[1].filter) != 0 {
		t.Errorf("second call saw a restriction: %v", f.levels[1].calls[1].filter)
	}
}

func TestNewEngine_RequiresAllLevels(t *testing.T) {
	rs := []*Retriever{NewRetriever(1, 10, &fakeLevel{}), NewRetriever(2, 10, &fakeLevel{})}
	_, err := NewEngine(rs, Options{}, logger.Discard())
	var ce *domain.ConfigurationError
	if !errors.As(err, &ce) || ce.Level != "level_3" {
		t.Fatalf("expected ConfigurationError for level_3, got %v", err)
	}
}

func TestAcrossLevelsBatch(t *testing.T) {
	f := newFixture(t, PolicyRetain)
	f.levels[2].match = map[int]bool{0: true}
	queries := []RangeQuery{
		{Query: "a", High: 2, Low: 1},
		{Query: "b", High: 1, Low: 2},
		{Query: "c", High: 2, Low: 1},
	}
	res, err := f.engine.AcrossLevelsBatch(context.Background(), queries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res))
	}
	if res[0].Err != nil || len(res[0].Chunks) != 3 {
		t.Errorf("unexpected first result %+v", res[0])
	}
	var ire *domain.InvalidRangeError
	if !errors.As(res[1].Err, &ire) {
		t.Errorf("expected invalid range for second query, got %v", res[1].Err)
	}
	if res[2].Query.Query != "c" {
		t.Errorf("results out of order")
	}
}

func TestFormat(t *testing.T) {
	got := FormatPassages([]domain.Chunk{{Content: "a"}, {Content: "b"}})
	if got != "Document 1:\na\n\nDocument 2:\nb" {
		t.Errorf("unexpected passages %q", got)
	}
	if FormatPassages(nil) != NoRelevantInformation {
		t.Error("expected no-information message")
	}
	cites := FormatCitations([]Citation{{Page: 4, Content: "raw"}})
	if cites != "Page 4:\nraw" {
		t.Errorf("unexpected citations %q", cites)
	}
}
