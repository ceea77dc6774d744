package review

import "sort"

// BuildBookAggregates recomputes per-book rollups from scratch. Only
// canonical reviews (one per duplicate group) are counted so collapsed
// duplicates never inflate a book's numbers. Reviews without a sentiment
// label are excluded. Aggregates carry the book's canonical author and
// category sets when a matching BookRecord is provided.
func BuildBookAggregates(reviews []Review, groups []DuplicateGroup, books map[string]*BookRecord) map[string]*BookAggregate {
	canonical := map[string]struct{}{}
	for _, g := range groups {
		canonical[g.Canonical] = struct{}{}
	}

	out := map[string]*BookAggregate{}
	sums := map[string]float64{}
	for _, r := range reviews {
		if _, ok := canonical[r.ID]; !ok {
			continue
		}
		if r.Label == "" {
			continue
		}
		title := r.CanonicalTitle
		if title == "" {
			title = r.Title
		}
		a := out[title]
		if a == nil {
			a = &BookAggregate{Title: title}
			out[title] = a
		}
		a.ReviewCount++
		sums[title] += r.Compound
		switch r.Label {
		case LabelPositive:
			a.PositiveCount++
		case LabelNegative:
			a.NegativeCount++
		case LabelNeutral:
			a.NeutralCount++
		}
	}
	for title, a := range out {
		a.MeanCompound = sums[title] / float64(a.ReviewCount)
		a.NegativePct = float64(a.NegativeCount) * 100.0 / float64(a.ReviewCount)
		if b, ok := books[title]; ok {
			a.Authors = append([]string(nil), b.Authors...)
			a.Categories = append([]string(nil), b.Categories...)
		}
	}
	return out
}

// BuildUserAggregates recomputes per-user rollups from canonical reviews.
// Distinct categories come from the reviewed books' canonical category sets.
func BuildUserAggregates(reviews []Review, groups []DuplicateGroup, books map[string]*BookRecord) map[string]*UserAggregate {
	canonical := map[string]struct{}{}
	for _, g := range groups {
		canonical[g.Canonical] = struct{}{}
	}

	out := map[string]*UserAggregate{}
	sums := map[string]float64{}
	labels := map[string]map[Label]struct{}{}
	categories := map[string]map[string]struct{}{}
	for _, r := range reviews {
		if _, ok := canonical[r.ID]; !ok {
			continue
		}
		if r.UserID == "" || r.Label == "" {
			continue
		}
		u := out[r.UserID]
		if u == nil {
			u = &UserAggregate{UserID: r.UserID}
			out[r.UserID] = u
			labels[r.UserID] = map[Label]struct{}{}
			categories[r.UserID] = map[string]struct{}{}
		}
		u.ReviewCount++
		sums[r.UserID] += r.Compound
		labels[r.UserID][r.Label] = struct{}{}
		switch r.Label {
		case LabelPositive:
			u.PositiveCount++
		case LabelNegative:
			u.NegativeCount++
		case LabelNeutral:
			u.NeutralCount++
		}
		title := r.CanonicalTitle
		if title == "" {
			title = r.Title
		}
		if b, ok := books[title]; ok {
			for _, c := range b.Categories {
				categories[r.UserID][c] = struct{}{}
			}
		}
	}
	for id, u := range out {
		u.MeanCompound = sums[id] / float64(u.ReviewCount)
		u.DistinctLabels = len(labels[id])
		u.DistinctCategories = len(categories[id])
	}
	return out
}

// SortedTitles returns aggregate keys in a stable order for persistence.
func SortedTitles[T any](m map[string]*T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
