// Package retrieve ranks series cards against a question with a lexical
// TF-IDF model (unigrams and bigrams, English stop words, sublinear tf,
// smoothed idf, L2-normalized cosine similarity).
package retrieve

import (
	"math"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/sells-group/fredqa/internal/cards"
)

// DefaultK is the number of documents returned by default.
const DefaultK = 3

// Result is a ranked document.
type Result struct {
	DocID string
	Score float64
	Text  string
}

var tokenRe = regexp.MustCompile(`\b\w\w+\b`)

// Index is an immutable TF-IDF index over a fixed document set. It is safe
// for concurrent use.
type Index struct {
	docs    []cards.Doc
	idf     map[string]float64
	vectors []vector
}

// vector is a sparse tf-idf vector. Terms are sorted so sums over a vector
// always run in the same order.
type vector struct {
	terms   []string
	weights map[string]float64
}

// NewIndex builds an index over docs in the given order.
func NewIndex(docs []cards.Doc) *Index {
	idx := &Index{
		docs:    docs,
		idf:     make(map[string]float64),
		vectors: make([]vector, len(docs)),
	}

	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		counts[i] = termCounts(d.Text)
		for term := range counts[i] {
			df[term]++
		}
	}

	n := float64(len(docs))
	for term, f := range df {
		idx.idf[term] = math.Log((1+n)/(1+float64(f))) + 1
	}
	for i := range docs {
		idx.vectors[i] = idx.weigh(counts[i])
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.docs)
}

// Retrieve returns up to k documents with positive similarity to query,
// highest first. Equal scores keep index order.
func (idx *Index) Retrieve(query string, k int) []Result {
	if strings.TrimSpace(query) == "" || len(idx.docs) == 0 || k <= 0 {
		return nil
	}
	q := idx.weigh(termCounts(query))
	if len(q.terms) == 0 {
		return nil
	}

	results := make([]Result, 0, len(idx.docs))
	for i, vec := range idx.vectors {
		score := dot(q, vec)
		if score <= 0 {
			continue
		}
		results = append(results, Result{DocID: idx.docs[i].ID, Score: score, Text: idx.docs[i].Text})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// weigh turns raw counts into an L2-normalized tf-idf vector. Terms outside
// the vocabulary are dropped.
func (idx *Index) weigh(counts map[string]int) vector {
	terms := make([]string, 0, len(counts))
	for _, term := range slices.Sorted(maps.Keys(counts)) {
		if _, ok := idx.idf[term]; ok {
			terms = append(terms, term)
		}
	}
	weights := make(map[string]float64, len(terms))
	var norm float64
	for _, term := range terms {
		w := (1 + math.Log(float64(counts[term]))) * idx.idf[term]
		weights[term] = w
		norm += w * w
	}
	if norm == 0 {
		return vector{}
	}
	norm = math.Sqrt(norm)
	for _, term := range terms {
		weights[term] /= norm
	}
	return vector{terms: terms, weights: weights}
}

func termCounts(text string) map[string]int {
	var tokens []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}
	return counts
}

// dot sums over the query's terms in sorted order.
func dot(q, doc vector) float64 {
	var s float64
	for _, term := range q.terms {
		s += q.weights[term] * doc.weights[term]
	}
	return s
}
