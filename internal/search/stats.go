package search

import (
	"context"
	"strings"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// SmartSearch runs a recursive fuzzy search for images from the root and
// orders the matches by relevance. A threshold <= 0 or maxResults <= 0 selects the
// defaults.
func (e *Engine) SmartSearch(ctx context.Context, query string, threshold float64, maxResults int) ([]*types.SearchResult, error) {
	if threshold <= 0 {
		threshold = utils.DefaultSmartThreshold
	}
	if maxResults <= 0 {
		maxResults = utils.DefaultSmartMaxResults
	}
	return e.Search(ctx, &types.SearchFilter{
		Keyword:        query,
		FuzzyThreshold: &threshold,
		Scope:          "/",
		Recursive:      true,
		ImagesOnly:     true,
		SortBy:         types.SortByScore,
		SortOrder:      types.SortDesc,
		MaxResults:     maxResults,
	})
}

// Suggestions returns up to limit distinct image names containing query,
// in discovery order.
func (e *Engine) Suggestions(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = utils.DefaultSuggestionLimit
	}

	results, err := e.Search(ctx, &types.SearchFilter{
		Keyword:    query,
		Scope:      "/",
		Recursive:  true,
		ImagesOnly: true,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	names := make([]string, 0, limit)
	for _, r := range results {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
		if len(names) == limit {
			break
		}
	}
	return names, nil
}

// FileTypeStats counts the image files below scope per extension
func (e *Engine) FileTypeStats(ctx context.Context, scope string) (types.TypeStats, error) {
	files, _, err := e.collect(ctx, scope, true)
	if err != nil {
		return nil, err
	}
	stats := make(types.TypeStats)
	for _, f := range files {
		if ext := f.Extension(); utils.IsImageFile(ext) {
			stats[ext]++
		}
	}
	return stats, nil
}

// SizeDistribution counts the image files below scope per size preset bucket
func (e *Engine) SizeDistribution(ctx context.Context, scope string) (*types.SizeDistribution, error) {
	files, _, err := e.collect(ctx, scope, true)
	if err != nil {
		return nil, err
	}
	dist := &types.SizeDistribution{}
	for _, f := range files {
		if !utils.IsImageFile(f.Extension()) {
			continue
		}
		switch SizeBucket(f.Size) {
		case "small":
			dist.Small++
		case "medium":
			dist.Medium++
		case "large":
			dist.Large++
		default:
			dist.XLarge++
		}
	}
	return dist, nil
}
