package search

import (
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/testing/mocks"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilter(t *testing.T) {
	engine := NewEngine(mocks.NewTreeClient(), nil, nil)

	f, err := engine.BuildFilter(Query{
		Keyword:    " cat ",
		Extensions: []string{"jpg,png", " gif "},
		MinSize:    "1KiB",
		MaxSize:    "2 MB",
		After:      "2024-01-01",
		Before:     "2024-01-31",
		Scope:      "photos/",
		Recursive:  true,
		SortBy:     "SIZE",
		SortOrder:  "desc",
		Limit:      10,
	})

	require.NoError(t, err)
	assert.Equal(t, "cat", f.Keyword)
	assert.Equal(t, []string{"jpg", "png", "gif"}, f.Extensions)
	assert.Equal(t, int64(1024), *f.MinSize)
	assert.Equal(t, int64(2000000), *f.MaxSize)
	assert.Equal(t, "/photos", f.Scope)
	assert.Equal(t, types.SortBySize, f.SortBy)
	assert.Equal(t, types.SortDesc, f.SortOrder)
	assert.Equal(t, 10, f.MaxResults)
	assert.Equal(t, 31, f.ModifiedBefore.Day())
	assert.Equal(t, 23, f.ModifiedBefore.Hour())
}

func TestBuildFilter_Presets(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(mocks.NewTreeClient(), nil, nil, WithClock(func() time.Time { return now }))

	f, err := engine.BuildFilter(Query{SizePreset: "medium", DatePreset: "week"})
	require.NoError(t, err)
	assert.Equal(t, int64(100*1024), *f.MinSize)
	assert.Equal(t, now.AddDate(0, 0, -7), *f.ModifiedAfter)

	f, err = engine.BuildFilter(Query{SizePreset: "all", DatePreset: "all"})
	require.NoError(t, err)
	assert.Nil(t, f.MinSize)
	assert.Nil(t, f.ModifiedAfter)

	// explicit bounds override the preset
	f, err = engine.BuildFilter(Query{SizePreset: "small", MaxSize: "10"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), *f.MaxSize)
}

func TestBuildFilter_Invalid(t *testing.T) {
	engine := NewEngine(mocks.NewTreeClient(), nil, nil)

	for name, q := range map[string]Query{
		"bad size":      {MinSize: "lots"},
		"negative size": {MaxSize: "-5"},
		"bad date":      {After: "yesterday"},
		"bad fuzzy":     {Keyword: "x", Fuzzy: "high"},
		"bad preset":    {SizePreset: "giant"},
		"inverted":      {MinSize: "2MB", MaxSize: "1MB"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.BuildFilter(q)
			assert.True(t, errors.IsInvalidFilter(err), "got %v", err)
		})
	}
}
