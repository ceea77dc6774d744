package catalog

// matchRatio is a sequence-matcher similarity in [0, 1]: twice the total
// length of recursively matched common substrings over the combined length.
// Equal strings score 1, disjoint strings 0.
func matchRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := totalMatched(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

func totalMatched(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += totalMatched(a[:ai], b[:bi])
	total += totalMatched(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (int, int, int) {
	bestA, bestB, bestLen := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestLen {
					bestLen = cur[j]
					bestA = i - bestLen
					bestB = j - bestLen
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestA, bestB, bestLen
}
