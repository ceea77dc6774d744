package dedup

import (
	"math"
	"sort"
	"strings"
)

// English stop words matching the set the vectorizer excludes from the
// vocabulary. Bigrams containing a stop word are still emitted, keeping
// short reviews comparable.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

type vector map[int]float64

// vectorizer builds a TF-IDF model over one batch of documents. The
// vocabulary (unigrams plus bigrams, most frequent terms first, capped at
// maxFeatures) is fixed once per batch so every document is embedded in the
// same space.
type vectorizer struct {
	vocab map[string]int
	idf   []float64
}

func tokenize(text string) []string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	for i := 0; i+1 < len(fields); i++ {
		terms = append(terms, fields[i]+" "+fields[i+1])
	}
	return terms
}

func newVectorizer(docs []string, maxFeatures int) *vectorizer {
	termTotal := map[string]int{}
	termDocs := map[string]int{}
	for _, doc := range docs {
		terms := tokenize(doc)
		seen := map[string]struct{}{}
		for _, t := range terms {
			termTotal[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				termDocs[t]++
			}
		}
	}

	terms := make([]string, 0, len(termTotal))
	for t := range termTotal {
		terms = append(terms, t)
	}
	// Most frequent first; alphabetical on ties so the vocabulary is stable
	// regardless of map iteration order.
	sort.Slice(terms, func(i, j int) bool {
		if termTotal[terms[i]] != termTotal[terms[j]] {
			return termTotal[terms[i]] > termTotal[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}

	v := &vectorizer{vocab: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(docs))
	for i, t := range terms {
		v.vocab[t] = i
		// Smoothed IDF, never zero, so single-document batches still embed.
		v.idf[i] = math.Log((1+n)/(1+float64(termDocs[t]))) + 1
	}
	return v
}

// embed returns the L2-normalized TF-IDF vector for doc, or nil when no
// vocabulary term occurs in it.
func (v *vectorizer) embed(doc string) vector {
	counts := map[int]float64{}
	for _, t := range tokenize(doc) {
		if idx, ok := v.vocab[t]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	var norm float64
	for idx, tf := range counts {
		w := tf * v.idf[idx]
		counts[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}
	for idx := range counts {
		counts[idx] /= norm
	}
	return counts
}

// cosine of two L2-normalized vectors is their dot product.
func cosine(a, b vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for idx, w := range a {
		dot += w * b[idx]
	}
	return dot
}
