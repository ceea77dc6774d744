// Package dedup partitions a review batch into duplicate groups using TF-IDF
// cosine similarity. Pairwise comparison is quadratic, so candidates are
// restricted to a blocking key (the normalized book title); the engine never
// compares across blocks.
package dedup

import (
	"hash/fnv"
	"sort"

	"github.com/joelkehle/review-refinery/internal/review"
)

const (
	DefaultThreshold   = 0.85
	DefaultMaxFeatures = 1000
)

type Config struct {
	// Threshold is the cosine similarity at or above which two reviews are
	// considered duplicates. Must be in (0, 1].
	Threshold float64
	// MaxFeatures caps the per-block TF-IDF vocabulary.
	MaxFeatures int
	// SampleFraction in (0, 1] restricts similarity comparison to a
	// deterministic subset of the corpus; reviews outside the sample become
	// singleton groups. 0 means compare everything.
	SampleFraction float64
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultMaxFeatures
	}
	return &Engine{cfg: cfg}
}

// Partition assigns every review to exactly one duplicate group. The output
// is invariant under permutation of the input: blocks are processed in title
// order, members in ID order, and the canonical member is elected by the
// total order (normalized text length descending, review ID ascending).
//
// Reviews whose normalized text is empty are never compared against anything,
// including each other; collapsing unrelated blank reviews would be worse
// than leaving them alone. Reviews that fail vectorization become their own
// singleton group rather than aborting the batch.
func (e *Engine) Partition(reviews []review.Review) []review.DuplicateGroup {
	blocks := map[string][]review.Review{}
	var singles []review.Review
	for _, r := range reviews {
		if r.NormalizedText == "" || !e.sampled(r.ID) {
			singles = append(singles, r)
			continue
		}
		key := r.CanonicalTitle
		if key == "" {
			key = r.Title
		}
		blocks[key] = append(blocks[key], r)
	}

	keys := make([]string, 0, len(blocks))
	for k := range blocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var groups []review.DuplicateGroup
	for _, k := range keys {
		groups = append(groups, e.partitionBlock(blocks[k])...)
	}
	for _, r := range singles {
		groups = append(groups, review.DuplicateGroup{ID: r.ID, Canonical: r.ID, Members: []string{r.ID}})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

func (e *Engine) partitionBlock(members []review.Review) []review.DuplicateGroup {
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	docs := make([]string, len(members))
	for i, r := range members {
		docs[i] = r.NormalizedText
	}
	vec := newVectorizer(docs, e.cfg.MaxFeatures)
	vectors := make([]vector, len(members))
	for i, doc := range docs {
		vectors[i] = vec.embed(doc)
	}

	uf := newUnionFind(len(members))
	for i := 0; i < len(members); i++ {
		if vectors[i] == nil {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			if vectors[j] == nil {
				continue
			}
			if cosine(vectors[i], vectors[j]) >= e.cfg.Threshold {
				uf.union(i, j)
			}
		}
	}

	component := map[int][]int{}
	for i := range members {
		root := uf.find(i)
		component[root] = append(component[root], i)
	}

	groups := make([]review.DuplicateGroup, 0, len(component))
	for _, idxs := range component {
		canonical := idxs[0]
		for _, i := range idxs[1:] {
			if better(members[i], members[canonical]) {
				canonical = i
			}
		}
		g := review.DuplicateGroup{ID: members[canonical].ID, Canonical: members[canonical].ID}
		for _, i := range idxs {
			g.Members = append(g.Members, members[i].ID)
		}
		sort.Strings(g.Members)
		groups = append(groups, g)
	}
	return groups
}

// better reports whether a outranks b for canonical election: longest
// normalized text first, lowest ID on ties. Never falls back to iteration
// order.
func better(a, b review.Review) bool {
	if len(a.NormalizedText) != len(b.NormalizedText) {
		return len(a.NormalizedText) > len(b.NormalizedText)
	}
	return a.ID < b.ID
}

// sampled decides membership in the working subset by hashing the review ID,
// so the subset does not depend on input order.
func (e *Engine) sampled(id string) bool {
	if e.cfg.SampleFraction <= 0 || e.cfg.SampleFraction >= 1 {
		return true
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return float64(h.Sum32()%10000) < e.cfg.SampleFraction*10000
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Lower index wins the root so merges are order-independent.
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
