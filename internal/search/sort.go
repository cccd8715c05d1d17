package search

import (
	"sort"
	"strings"

	"github.com/dl-alexandre/ghimg/internal/types"
)

// SortResults returns a new slice ordered by key. The sort is stable, so
// ties keep discovery order in both directions. An empty key keeps the
// input order.
func SortResults(results []*types.SearchResult, key types.SortKey, order types.SortOrder) []*types.SearchResult {
	sorted := make([]*types.SearchResult, len(results))
	copy(sorted, results)
	if key == "" {
		return sorted
	}

	cmp := comparator(key)
	desc := order == types.SortDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		c := cmp(sorted[i], sorted[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

func comparator(key types.SortKey) func(a, b *types.SearchResult) int {
	switch key {
	case types.SortBySize:
		return func(a, b *types.SearchResult) int {
			return compareInt64(a.Size, b.Size)
		}
	case types.SortByDate:
		// unknown times compare as the zero time, i.e. oldest
		return func(a, b *types.SearchResult) int {
			return a.ModifiedAt.Compare(b.ModifiedAt)
		}
	case types.SortByType:
		return func(a, b *types.SearchResult) int {
			return strings.Compare(a.Extension(), b.Extension())
		}
	case types.SortByScore:
		return func(a, b *types.SearchResult) int {
			switch {
			case a.Score < b.Score:
				return -1
			case a.Score > b.Score:
				return 1
			}
			return 0
		}
	default:
		return func(a, b *types.SearchResult) int {
			if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		}
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
