package search

import "strings"

// Levenshtein returns the edit distance between a and b, counting
// insertions, deletions and substitutions as 1. It works on runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// EditSimilarity is 1 - lev(a, b) / max(len(a), len(b)). It is symmetric
// and lies in [0, 1]; two empty strings are identical.
func EditSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// Similarity scores how well needle matches haystack: 1.0 when needle is a
// substring of haystack, EditSimilarity otherwise.
func Similarity(haystack, needle string) float64 {
	if strings.Contains(haystack, needle) {
		return 1.0
	}
	return EditSimilarity(haystack, needle)
}
