package search

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/exclude"
	"github.com/dl-alexandre/ghimg/internal/logging"
	testhelpers "github.com/dl-alexandre/ghimg/internal/testing"
	"github.com/dl-alexandre/ghimg/internal/testing/mocks"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func paths(results []*types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}

func newTestEngine(client *mocks.TreeClient) *Engine {
	listings := cache.New[[]*types.Entry](100, time.Minute, cache.WithName("listings"))
	results := cache.New[[]*types.SearchResult](50, time.Minute, cache.WithName("search"))
	return NewEngine(client, listings, logging.NewNoOpLogger(), WithResultCache(results))
}

func TestSearch_EndToEnd(t *testing.T) {
	engine := newTestEngine(testhelpers.SampleTree())

	results, err := engine.Search(testhelpers.TestContext(), &types.SearchFilter{
		Extensions: []string{"jpg", "png"},
		MinSize:    int64Ptr(0),
		MaxSize:    int64Ptr(100000),
		Scope:      "/",
		Recursive:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/b/c.png"}, paths(results))
	assert.Equal(t, "/b", results[0].Directory)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSearch_DiscoveryOrderIsDepthFirst(t *testing.T) {
	tree := mocks.NewTreeClient()
	tree.AddFile("/1.png", 1)
	tree.AddDir("/d")
	tree.AddFile("/d/2.png", 1)
	tree.AddDir("/d/e")
	tree.AddFile("/d/e/3.png", 1)
	tree.AddFile("/d/4.png", 1)
	tree.AddFile("/5.png", 1)

	engine := newTestEngine(tree)
	results, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"/1.png", "/d/2.png", "/d/e/3.png", "/d/4.png", "/5.png"}, paths(results))
}

func TestSearch_NonRecursiveStaysInScope(t *testing.T) {
	engine := newTestEngine(testhelpers.SampleTree())

	results, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/b"})

	require.NoError(t, err)
	assert.Equal(t, []string{"/b/c.png", "/b/d.txt"}, paths(results))
}

func TestSearch_ScopeIsDescendantOnly(t *testing.T) {
	engine := newTestEngine(testhelpers.SampleTree())

	results, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "b/", Recursive: true})

	require.NoError(t, err)
	for _, r := range results {
		assert.Contains(t, r.Path, "/b/")
	}
	assert.Len(t, results, 2)
}

func TestSearch_ExcludedPathsArePruned(t *testing.T) {
	tree := mocks.NewTreeClient()
	tree.AddFile("/a.png", 1)
	tree.AddFile("/node_modules/pkg/icon.png", 1)
	tree.AddFile("/drafts/b.png", 1)
	tree.AddFile("/c.psd", 1)
	engine := NewEngine(tree, nil, nil, WithExclude(exclude.New([]string{"drafts/", "*.psd"})))

	results, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png"}, paths(results))
	assert.Zero(t, tree.ListCalls("/node_modules"), "excluded directories are not listed")
}

func TestSearch_BranchFailureIsSkipped(t *testing.T) {
	tree := testhelpers.SampleTree()
	tree.AddDir("/broken")
	tree.AddFile("/broken/x.png", 10)
	tree.FailList("/broken", errors.NewRemoteFetchError("/broken", 500, "boom", nil))

	results, err := newTestEngine(tree).Search(context.Background(), &types.SearchFilter{
		Extensions: []string{"png"},
		Scope:      "/",
		Recursive:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/b/c.png"}, paths(results))
}

func TestSearch_RootFailureIsFatal(t *testing.T) {
	tree := testhelpers.SampleTree()
	tree.FailList("/", errors.NewRemoteFetchError("/", 503, "unavailable", nil))

	_, err := newTestEngine(tree).Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true})

	require.Error(t, err)
	rf, ok := errors.AsRemoteFetch(err)
	require.True(t, ok)
	assert.Equal(t, 503, rf.StatusCode)
}

func TestSearch_MissingScopeIsFatal(t *testing.T) {
	_, err := newTestEngine(testhelpers.SampleTree()).Search(context.Background(), &types.SearchFilter{Scope: "/nope"})

	rf, ok := errors.AsRemoteFetch(err)
	require.True(t, ok)
	assert.True(t, rf.IsNotFound())
}

func TestSearch_InvalidFilter(t *testing.T) {
	tree := testhelpers.SampleTree()
	engine := newTestEngine(tree)

	_, err := engine.Search(context.Background(), &types.SearchFilter{
		MinSize: int64Ptr(10),
		MaxSize: int64Ptr(5),
	})

	require.Error(t, err)
	assert.True(t, errors.IsInvalidFilter(err))
	assert.Equal(t, 0, tree.ListCalls("/"), "invalid filters are rejected before any fetch")
}

func TestSearch_SortThenTruncate(t *testing.T) {
	tree := mocks.NewTreeClient()
	tree.AddFile("/small.png", 10)
	tree.AddDir("/deep")
	tree.AddFile("/deep/huge.png", 9000)
	tree.AddFile("/mid.png", 500)

	results, err := newTestEngine(tree).Search(context.Background(), &types.SearchFilter{
		Scope:      "/",
		Recursive:  true,
		SortBy:     types.SortBySize,
		SortOrder:  types.SortDesc,
		MaxResults: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/deep/huge.png"}, paths(results))
}

func TestSearch_FuzzyKeyword(t *testing.T) {
	tree := mocks.NewTreeClient()
	tree.AddFile("/sunset.jpg", 1)
	tree.AddFile("/sunst.jpg", 1)
	tree.AddFile("/zzzz.jpg", 1)

	// "sunst.jpg" is 5 edits from "sunset" over 9 runes
	threshold := 0.4
	results, err := newTestEngine(tree).Search(context.Background(), &types.SearchFilter{
		Keyword:        "sunset",
		FuzzyThreshold: &threshold,
		Scope:          "/",
		SortBy:         types.SortByScore,
		SortOrder:      types.SortDesc,
	})

	require.NoError(t, err)
	require.Equal(t, []string{"/sunset.jpg", "/sunst.jpg"}, paths(results))
	assert.Equal(t, 1.0, results[0].Score)
	assert.Less(t, results[1].Score, 1.0)
	assert.GreaterOrEqual(t, results[1].Score, threshold)
}

func TestSearch_UnknownDatePasses(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tree := mocks.NewTreeClient()
	tree.AddFileWith("/old.jpg", 1, now.AddDate(-2, 0, 0), nil)
	tree.AddFileWith("/new.jpg", 1, now.Add(-time.Hour), nil)
	tree.AddFile("/unknown.jpg", 1)

	after := now.AddDate(0, 0, -7)
	results, err := newTestEngine(tree).Search(context.Background(), &types.SearchFilter{
		ModifiedAfter: &after,
		Scope:         "/",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"/new.jpg", "/unknown.jpg"}, paths(results))
}

func TestSearch_ListingsAreCached(t *testing.T) {
	tree := testhelpers.SampleTree()
	listings := cache.New[[]*types.Entry](100, time.Minute)
	engine := NewEngine(tree, listings, nil)

	for i := 0; i < 3; i++ {
		_, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true, Keyword: "c"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, tree.ListCalls("/"))
	assert.Equal(t, 1, tree.ListCalls("/b"))
}

func TestSearch_ResultCacheSkipsPartialResults(t *testing.T) {
	tree := testhelpers.SampleTree()
	tree.FailList("/b", errors.NewRemoteFetchError("/b", 500, "boom", nil))
	results := cache.New[[]*types.SearchResult](10, time.Minute)
	engine := NewEngine(tree, nil, nil, WithResultCache(results))

	filter := &types.SearchFilter{Scope: "/", Recursive: true}
	_, err := engine.Search(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 0, results.Len())

	_, err = engine.Search(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, tree.ListCalls("/b"), "failed branch is retried on the next search")
}

func TestSearch_ResultCacheHit(t *testing.T) {
	tree := testhelpers.SampleTree()
	engine := NewEngine(tree, nil, nil, WithResultCache(cache.New[[]*types.SearchResult](10, time.Minute)))

	filter := &types.SearchFilter{Scope: "/", Recursive: true, Extensions: []string{"PNG", ".jpg"}}
	first, err := engine.Search(context.Background(), filter)
	require.NoError(t, err)

	// equivalent filter with reordered, differently-cased extensions
	second, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true, Extensions: []string{"jpg", "png"}})
	require.NoError(t, err)

	assert.Equal(t, paths(first), paths(second))
	assert.Equal(t, 1, tree.ListCalls("/"))
}

func TestSearch_CachedResultsAreCopies(t *testing.T) {
	tree := testhelpers.SampleTree()
	engine := NewEngine(tree, nil, nil, WithResultCache(cache.New[[]*types.SearchResult](10, time.Minute)))
	filter := &types.SearchFilter{Scope: "/", Recursive: true}

	first, err := engine.Search(context.Background(), filter)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	want := paths(first)
	for _, r := range first {
		r.Path = "/tampered"
		r.Score = 99
	}

	second, err := engine.Search(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, want, paths(second))
	for _, r := range second {
		assert.Equal(t, 1.0, r.Score)
		r.Path = "/tampered-again"
	}

	third, err := engine.Search(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, want, paths(third))
	assert.Equal(t, 1, tree.ListCalls("/"))
}

func TestSearch_Cancelled(t *testing.T) {
	tree := testhelpers.SampleTree()
	listings := cache.New[[]*types.Entry](100, time.Minute)
	engine := NewEngine(tree, listings, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Search(ctx, &types.SearchFilter{Scope: "/", Recursive: true})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Equal(t, 0, listings.Len(), "nothing is cached from a cancelled search")
}

func TestSearch_CancelledMidTraversal(t *testing.T) {
	tree := testhelpers.SampleTree()
	listings := cache.New[[]*types.Entry](100, time.Minute)
	engine := NewEngine(tree, listings, nil)

	ctx, cancel := context.WithCancel(context.Background())
	inner := tree
	client := mocks.NewTreeClient()
	client.ListDirectoryFunc = func(c context.Context, p string) ([]*types.Entry, error) {
		if p == "/b" {
			cancel()
			return nil, c.Err()
		}
		return inner.ListDirectory(c, p)
	}
	engine.client = client

	_, err := engine.Search(ctx, &types.SearchFilter{Scope: "/", Recursive: true})

	assert.ErrorIs(t, err, context.Canceled)
	_, cachedB := listings.Get("listing:/b")
	assert.False(t, cachedB)
}

func TestListChildren_ConcurrentMissesShareFetch(t *testing.T) {
	tree := testhelpers.SampleTree()
	tree.Delay = 20 * time.Millisecond
	engine := NewEngine(tree, cache.New[[]*types.Entry](10, time.Minute), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := engine.ListChildren(context.Background(), "/")
			assert.NoError(t, err)
			assert.Len(t, entries, 2)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, tree.ListCalls("/"), 8)
	assert.GreaterOrEqual(t, tree.ListCalls("/"), 1)
}

func TestListChildren_FailuresAreNotCached(t *testing.T) {
	tree := testhelpers.SampleTree()
	tree.FailList("/b", errors.NewRemoteFetchError("/b", 500, "boom", nil))
	listings := cache.New[[]*types.Entry](10, time.Minute)
	engine := NewEngine(tree, listings, nil)

	_, err := engine.ListChildren(context.Background(), "/b")
	require.Error(t, err)
	assert.False(t, listings.Has("listing:/b"))
}

func TestInvalidate(t *testing.T) {
	tree := testhelpers.SampleTree()
	engine := newTestEngine(tree)

	_, err := engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true})
	require.NoError(t, err)

	removed := engine.Invalidate("/b")
	assert.Equal(t, 2, removed)

	_, err = engine.Search(context.Background(), &types.SearchFilter{Scope: "/", Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, tree.ListCalls("/"))
	assert.Equal(t, 2, tree.ListCalls("/b"))
}
