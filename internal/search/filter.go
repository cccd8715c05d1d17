package search

import (
	"strings"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// ValidateFilter rejects self-contradictory or malformed filters so callers
// can tell "no matches" apart from a bad query.
func ValidateFilter(f *types.SearchFilter) error {
	if f == nil {
		return nil
	}
	if f.MinSize != nil && *f.MinSize < 0 {
		return errors.NewInvalidFilter("minSize", "must not be negative, got %d", *f.MinSize)
	}
	if f.MaxSize != nil && *f.MaxSize < 0 {
		return errors.NewInvalidFilter("maxSize", "must not be negative, got %d", *f.MaxSize)
	}
	if f.MinSize != nil && f.MaxSize != nil && *f.MinSize > *f.MaxSize {
		return errors.NewInvalidFilter("size", "minimum %d exceeds maximum %d", *f.MinSize, *f.MaxSize)
	}
	if f.ModifiedAfter != nil && f.ModifiedBefore != nil && f.ModifiedAfter.After(*f.ModifiedBefore) {
		return errors.NewInvalidFilter("date", "start %s is after end %s",
			f.ModifiedAfter.Format("2006-01-02T15:04:05Z07:00"), f.ModifiedBefore.Format("2006-01-02T15:04:05Z07:00"))
	}
	if f.FuzzyThreshold != nil && (*f.FuzzyThreshold < 0 || *f.FuzzyThreshold > 1) {
		return errors.NewInvalidFilter("fuzzyThreshold", "must be within [0, 1], got %v", *f.FuzzyThreshold)
	}
	if f.IsFuzzy() && !f.HasKeyword() {
		return errors.NewInvalidFilter("fuzzyThreshold", "requires a keyword")
	}
	switch f.SortBy {
	case "", types.SortByName, types.SortBySize, types.SortByDate, types.SortByType, types.SortByScore:
	default:
		return errors.NewInvalidFilter("sortBy", "unknown sort key %q", f.SortBy)
	}
	switch f.SortOrder {
	case "", types.SortAsc, types.SortDesc:
	default:
		return errors.NewInvalidFilter("sortOrder", "must be asc or desc, got %q", f.SortOrder)
	}
	if f.MaxResults < 0 {
		return errors.NewInvalidFilter("maxResults", "must not be negative, got %d", f.MaxResults)
	}
	return nil
}

// matcher is a filter compiled for repeated evaluation
type matcher struct {
	extensions map[string]bool
	imagesOnly bool
	minSize    *int64
	maxSize    *int64
	keyword    string
	threshold  *float64
	filter     *types.SearchFilter
}

func newMatcher(f *types.SearchFilter) *matcher {
	m := &matcher{
		imagesOnly: f.ImagesOnly,
		minSize:    f.MinSize,
		maxSize:    f.MaxSize,
		keyword:    strings.ToLower(strings.TrimSpace(f.Keyword)),
		threshold:  f.FuzzyThreshold,
		filter:     f,
	}
	if exts := normalizeExtensions(f.Extensions); len(exts) > 0 {
		m.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			m.extensions[ext] = true
		}
	}
	return m
}

// match applies the predicates cheapest-first and returns the entry's score.
// Without a keyword every match scores 1.0.
func (m *matcher) match(e *types.Entry) (float64, bool) {
	// extension
	if m.extensions != nil || m.imagesOnly {
		ext := e.Extension()
		if m.extensions != nil && !m.extensions[ext] {
			return 0, false
		}
		if m.imagesOnly && !utils.IsImageFile(ext) {
			return 0, false
		}
	}

	// size
	if m.minSize != nil && e.Size < *m.minSize {
		return 0, false
	}
	if m.maxSize != nil && e.Size > *m.maxSize {
		return 0, false
	}

	// keyword
	score := 1.0
	if m.keyword != "" {
		name := strings.ToLower(e.Name)
		if m.threshold != nil {
			score = Similarity(name, m.keyword)
			if score < *m.threshold {
				return 0, false
			}
		} else if !strings.Contains(name, m.keyword) {
			return 0, false
		}
	}

	// date; entries with an unknown modification time pass
	if !e.ModifiedAt.IsZero() {
		if m.filter.ModifiedAfter != nil && e.ModifiedAt.Before(*m.filter.ModifiedAfter) {
			return 0, false
		}
		if m.filter.ModifiedBefore != nil && e.ModifiedAt.After(*m.filter.ModifiedBefore) {
			return 0, false
		}
	}

	return score, true
}

// normalizeExtensions lower-cases, strips dots and drops empties
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}
