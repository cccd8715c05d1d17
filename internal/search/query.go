package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dustin/go-humanize"
)

// Query is the textual form of a filter as typed on the command line or
// passed as URL parameters. Sizes accept humanized values ("100KiB", "2MB").
// Dates accept YYYY-MM-DD or RFC 3339.
type Query struct {
	Keyword    string
	Fuzzy      string
	Extensions []string
	ImagesOnly bool
	MinSize    string
	MaxSize    string
	SizePreset string
	After      string
	Before     string
	DatePreset string
	Scope      string
	Recursive  bool
	SortBy     string
	SortOrder  string
	Limit      int
}

// BuildFilter parses q into a validated SearchFilter. Presets are applied
// first; explicit bounds override them.
func (e *Engine) BuildFilter(q Query) (*types.SearchFilter, error) {
	f := &types.SearchFilter{
		Keyword:    strings.TrimSpace(q.Keyword),
		ImagesOnly: q.ImagesOnly,
		Scope:      types.NormalizePath(q.Scope),
		Recursive:  q.Recursive,
		SortBy:     types.SortKey(strings.ToLower(q.SortBy)),
		SortOrder:  types.SortOrder(strings.ToLower(q.SortOrder)),
		MaxResults: q.Limit,
	}

	for _, raw := range q.Extensions {
		for _, ext := range strings.Split(raw, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				f.Extensions = append(f.Extensions, ext)
			}
		}
	}

	if q.Fuzzy != "" {
		threshold, err := strconv.ParseFloat(q.Fuzzy, 64)
		if err != nil {
			return nil, errors.NewInvalidFilter("fuzzyThreshold", "not a number: %q", q.Fuzzy)
		}
		f.FuzzyThreshold = &threshold
	}

	if q.SizePreset != "" && q.SizePreset != "all" {
		if err := ApplySizePreset(f, q.SizePreset); err != nil {
			return nil, err
		}
	}
	if q.MinSize != "" {
		v, err := parseSize("minSize", q.MinSize)
		if err != nil {
			return nil, err
		}
		f.MinSize = &v
	}
	if q.MaxSize != "" {
		v, err := parseSize("maxSize", q.MaxSize)
		if err != nil {
			return nil, err
		}
		f.MaxSize = &v
	}

	if q.DatePreset != "" && q.DatePreset != "all" {
		if err := e.ApplyDatePreset(f, q.DatePreset); err != nil {
			return nil, err
		}
	}
	if q.After != "" {
		t, err := parseDate("modifiedAfter", q.After, false)
		if err != nil {
			return nil, err
		}
		f.ModifiedAfter = &t
	}
	if q.Before != "" {
		t, err := parseDate("modifiedBefore", q.Before, true)
		if err != nil {
			return nil, err
		}
		f.ModifiedBefore = &t
	}

	if err := ValidateFilter(f); err != nil {
		return nil, err
	}
	return f, nil
}

func parseSize(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "-") {
		return 0, errors.NewInvalidFilter(field, "must not be negative, got %s", raw)
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, errors.NewInvalidFilter(field, "invalid size %q", raw)
	}
	return int64(n), nil
}

// parseDate reads a day or a timestamp. A bare day used as an upper bound
// covers the whole day.
func parseDate(field, raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, errors.NewInvalidFilter(field, "expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
