// Package normalize provides the conservative text cleanup used for record
// comparison: lowercase, strip everything outside [a-z0-9 ], collapse
// whitespace. The cleanup is deliberately destructive for matching purposes
// only; the original spelling is preserved elsewhere.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9 ]`)
	whitespace = regexp.MustCompile(`\s+`)
	quoted     = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)
)

// Search stop words kept short on purpose: the catalog search only needs the
// distinctive words of a title.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

const maxSearchWords = 5

// Normalize canonicalizes s for comparison. ok is false when nothing usable
// remains after cleaning; callers must treat such values as absent rather
// than comparing empty strings against each other.
func Normalize(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	s = nonAlnum.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return "", false
	}
	return s, true
}

// SearchTitle reduces a title to its distinctive words for catalog lookup:
// normalized, stop words removed, short words dropped, capped at five words.
func SearchTitle(title string) string {
	norm, ok := Normalize(title)
	if !ok {
		return ""
	}
	var kept []string
	for _, w := range strings.Fields(norm) {
		if _, stop := stopWords[w]; stop || len(w) <= 2 {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxSearchWords {
			break
		}
	}
	return strings.Join(kept, " ")
}

// ParseList extracts names from a bracketed literal-list string such as
// `['J. R. R. Tolkien', 'Christopher Tolkien']`. A plain string yields a
// single-element list. Names come back lowercased, de-duplicated and sorted;
// nil when nothing valid remains.
func ParseList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var raw []string
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		for _, m := range quoted.FindAllStringSubmatch(s, -1) {
			if m[1] != "" {
				raw = append(raw, m[1])
			} else if m[2] != "" {
				raw = append(raw, m[2])
			}
		}
	} else {
		raw = append(raw, s)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, v := range raw {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CanonicalMapping maps each normalized value to the most frequent original
// spelling seen in the batch. Frequency ties break to the lexicographically
// smallest original so the mapping never depends on input order.
func CanonicalMapping(values []string) map[string]string {
	counts := map[string]map[string]int{}
	for _, v := range values {
		norm, ok := Normalize(v)
		if !ok {
			continue
		}
		if counts[norm] == nil {
			counts[norm] = map[string]int{}
		}
		counts[norm][v]++
	}
	out := make(map[string]string, len(counts))
	for norm, originals := range counts {
		best := ""
		bestCount := -1
		for original, n := range originals {
			if n > bestCount || (n == bestCount && original < best) {
				best = original
				bestCount = n
			}
		}
		out[norm] = best
	}
	return out
}
