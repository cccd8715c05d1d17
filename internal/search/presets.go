package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// SizePresets lists the named size buckets in ascending order
var SizePresets = []string{"small", "medium", "large", "xlarge"}

// DatePresets lists the named date windows
var DatePresets = []string{"today", "week", "month", "year"}

// SizePreset returns the byte bounds of a named bucket. A nil bound is open.
func SizePreset(name string) (lower, upper *int64, err error) {
	ptr := func(v int64) *int64 { return &v }
	switch strings.ToLower(name) {
	case "small":
		return nil, ptr(utils.SizeSmallMax - 1), nil
	case "medium":
		return ptr(utils.SizeSmallMax), ptr(utils.SizeMediumMax - 1), nil
	case "large":
		return ptr(utils.SizeMediumMax), ptr(utils.SizeLargeMax - 1), nil
	case "xlarge":
		return ptr(utils.SizeLargeMax), nil, nil
	}
	return nil, nil, errors.NewInvalidFilter("sizePreset", "unknown preset %q, expected one of %s",
		name, strings.Join(SizePresets, ", "))
}

// DatePreset returns the lower bound of a named window relative to now.
// "today" starts at local midnight.
func DatePreset(name string, now time.Time) (time.Time, error) {
	switch strings.ToLower(name) {
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "year":
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, errors.NewInvalidFilter("datePreset", "unknown preset %q, expected one of %s",
		name, strings.Join(DatePresets, ", "))
}

// ApplySizePreset narrows f to the named size bucket
func ApplySizePreset(f *types.SearchFilter, name string) error {
	lower, upper, err := SizePreset(name)
	if err != nil {
		return err
	}
	f.MinSize, f.MaxSize = lower, upper
	return nil
}

// ApplyDatePreset narrows f to entries modified within the named window
func (e *Engine) ApplyDatePreset(f *types.SearchFilter, name string) error {
	after, err := DatePreset(name, e.now())
	if err != nil {
		return err
	}
	f.ModifiedAfter = &after
	f.ModifiedBefore = nil
	return nil
}

// SizeBucket names the preset bucket a size falls into
func SizeBucket(size int64) string {
	switch {
	case size < utils.SizeSmallMax:
		return "small"
	case size < utils.SizeMediumMax:
		return "medium"
	case size < utils.SizeLargeMax:
		return "large"
	default:
		return "xlarge"
	}
}

// DescribeFilter renders the active predicates for log lines and history
func DescribeFilter(f *types.SearchFilter) string {
	var parts []string
	if f.HasKeyword() {
		if f.IsFuzzy() {
			parts = append(parts, fmt.Sprintf("keyword~%q(%.2f)", f.Keyword, *f.FuzzyThreshold))
		} else {
			parts = append(parts, fmt.Sprintf("keyword=%q", f.Keyword))
		}
	}
	if len(f.Extensions) > 0 {
		parts = append(parts, "ext="+strings.Join(normalizeExtensions(f.Extensions), ","))
	}
	if f.ImagesOnly {
		parts = append(parts, "images")
	}
	if f.MinSize != nil {
		parts = append(parts, fmt.Sprintf("size>=%d", *f.MinSize))
	}
	if f.MaxSize != nil {
		parts = append(parts, fmt.Sprintf("size<=%d", *f.MaxSize))
	}
	if f.ModifiedAfter != nil {
		parts = append(parts, "after="+f.ModifiedAfter.Format(time.RFC3339))
	}
	if f.ModifiedBefore != nil {
		parts = append(parts, "before="+f.ModifiedBefore.Format(time.RFC3339))
	}
	parts = append(parts, "scope="+types.NormalizePath(f.Scope))
	return strings.Join(parts, " ")
}
