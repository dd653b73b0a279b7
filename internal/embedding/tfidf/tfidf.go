// Package tfidf is a local embedder built on smoothed TF-IDF weights.
package tfidf

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Options bounds the vocabulary learned by Prepare.
type Options struct {
	// MinDF drops terms found in fewer texts. Values below 1 mean 1.
	MinDF int
	// MaxFeatures keeps only the most frequent terms. Zero keeps all.
	MaxFeatures int
	// Sublinear scales term frequency as 1+log(tf).
	Sublinear bool
}

// Embedder vectorizes text over a vocabulary learned from the whole
// hierarchy, so raw passages and summaries share one space.
type Embedder struct {
	opts         Options
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}

	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
}

// NewEmbedder creates an unprepared embedder with an unbounded vocabulary.
func NewEmbedder() *Embedder {
	return NewEmbedderWithOptions(Options{})
}

// NewEmbedderWithOptions creates an unprepared embedder.
func NewEmbedderWithOptions(opts Options) *Embedder {
	if opts.MinDF < 1 {
		opts.MinDF = 1
	}
	return &Embedder{
		opts:         opts,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Embedder) Name() string { return "tfidf" }

// CorpusDependent reports that vocabulary and weights come from Prepare.
func (e *Embedder) CorpusDependent() bool { return true }

// Prepare learns the vocabulary and IDF weights from corpus. It may be called
// again to replace them.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		for tok := range e.termSet(text) {
			df[tok]++
		}
	}
	terms := e.selectTerms(df)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	e.mu.Lock()
	e.vocabulary, e.idf = vocabulary, idf
	e.mu.Unlock()
	return nil
}

// selectTerms applies MinDF and MaxFeatures and returns the surviving terms
// in lexical order.
func (e *Embedder) selectTerms(df map[string]int) []string {
	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= e.opts.MinDF {
			terms = append(terms, term)
		}
	}
	if e.opts.MaxFeatures > 0 && len(terms) > e.opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if df[terms[i]] != df[terms[j]] {
				return df[terms[i]] > df[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:e.opts.MaxFeatures]
	}
	sort.Strings(terms)
	return terms
}

// Dimension is the vocabulary size, zero before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed returns the L2-normalized TF-IDF vector of text. Text sharing no term
// with the vocabulary yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocabulary == nil {
		return nil, errors.New("tfidf embedder not prepared")
	}

	counts := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			counts[idx]++
			total++
		}
	}
	vec := make([]float64, len(e.idf))
	if total == 0 {
		return vec, nil
	}
	for idx, c := range counts {
		vec[idx] = e.termWeight(c, total) * e.idf[idx]
	}
	normalize(vec)
	return vec, nil
}

func (e *Embedder) termWeight(count, total int) float64 {
	if e.opts.Sublinear {
		return 1 + math.Log(float64(count))
	}
	return float64(count) / float64(total)
}

func normalize(vec []float64) {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// tokenize lowercases text and drops stopwords.
func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func (e *Embedder) termSet(text string) map[string]struct{} {
	toks := e.tokenize(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

func defaultStopwords() map[string]struct{} {
	words := strings.Fields(`a an the and or but if then else for to of in on at by with as is are
		was were be been being it its this that these those from up down over under again further
		than so such into about between through during before after above below out off own same
		too very can will just don should now not no nor has have had do does did which who whom
		what when where why how all any both each few more most other some only`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
