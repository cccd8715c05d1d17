// Package search answers "which files under a scope match a filter" over a
// remote tree, reading directory listings through a TTL cache.
//
// Traversal is depth-first over an explicit stack and preserves listing
// order. A failure to list the scope itself fails the search; a failure
// below it is logged and that branch contributes nothing.
package search

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/exclude"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/store"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"golang.org/x/sync/singleflight"
)

// Engine is the tree search engine. It is safe for concurrent use.
type Engine struct {
	client   store.TreeClient
	listings *cache.Cache[[]*types.Entry]
	results  *cache.Cache[[]*types.SearchResult]
	logger   logging.Logger
	exclude  *exclude.Matcher
	now      func() time.Time
	fetches  singleflight.Group
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces time.Now for date presets
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithResultCache memoizes whole search results
func WithResultCache(c *cache.Cache[[]*types.SearchResult]) Option {
	return func(e *Engine) { e.results = c }
}

// WithExclude prunes matching files and directories from traversals.
// Direct listings are not filtered.
func WithExclude(m *exclude.Matcher) Option {
	return func(e *Engine) { e.exclude = m }
}

// NewEngine creates an engine reading through listings. A nil listings cache
// disables listing memoization.
func NewEngine(client store.TreeClient, listings *cache.Cache[[]*types.Entry], logger logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	e := &Engine{
		client:   client,
		listings: listings,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromSet wires an engine to the listing and search caches of set
func NewEngineFromSet(client store.TreeClient, set *cache.Set, logger logging.Logger, opts ...Option) *Engine {
	opts = append([]Option{WithResultCache(set.Search)}, opts...)
	return NewEngine(client, set.Listings, logger, opts...)
}

// Now returns the engine's notion of the current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// ListChildren returns the children of path, from cache when fresh. Failed
// fetches are never cached, and neither are fetches whose context was
// cancelled. Concurrent misses for the same path share one fetch.
func (e *Engine) ListChildren(ctx context.Context, path string) ([]*types.Entry, error) {
	path = types.NormalizePath(path)
	key := utils.ListingKeyPrefix + path

	if e.listings != nil {
		if entries, ok := e.listings.Get(key); ok {
			return entries, nil
		}
	}

	v, err, _ := e.fetches.Do(key, func() (interface{}, error) {
		return e.client.ListDirectory(ctx, path)
	})
	if err != nil && isContextErr(err) && ctx.Err() == nil {
		// a different caller's context ended the shared fetch
		v, err = e.client.ListDirectory(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	entries, _ := v.([]*types.Entry)
	if e.listings != nil && ctx.Err() == nil {
		e.listings.Set(key, entries)
	}
	return entries, nil
}

// Search returns the files under filter.Scope that satisfy every active
// predicate, sorted and truncated as requested.
func (e *Engine) Search(ctx context.Context, filter *types.SearchFilter) ([]*types.SearchResult, error) {
	if filter == nil {
		filter = &types.SearchFilter{}
	}
	if err := ValidateFilter(filter); err != nil {
		return nil, err
	}

	key := resultKey(filter)
	if e.results != nil {
		if cached, ok := e.results.Get(key); ok {
			return cloneResults(cached), nil
		}
	}

	files, complete, err := e.collect(ctx, filter.Scope, filter.Recursive)
	if err != nil {
		return nil, err
	}

	m := newMatcher(filter)
	matched := make([]*types.SearchResult, 0, len(files))
	for _, f := range files {
		score, ok := m.match(f)
		if !ok {
			continue
		}
		matched = append(matched, &types.SearchResult{
			Entry:     *f,
			Directory: f.Directory(),
			Score:     score,
		})
	}

	results := SortResults(matched, filter.SortBy, filter.SortOrder)
	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}

	// partial results are not memoized so a transient branch failure is retried next time
	if e.results != nil && complete && ctx.Err() == nil {
		e.results.Set(key, results)
	}

	e.logger.Debug("Search complete",
		logging.F("scope", types.NormalizePath(filter.Scope)),
		logging.F("scanned", len(files)),
		logging.F("matched", len(matched)),
		logging.F("returned", len(results)),
	)

	return cloneResults(results), nil
}

// cloneResults copies every result so callers never share records with the
// result cache
func cloneResults(in []*types.SearchResult) []*types.SearchResult {
	out := make([]*types.SearchResult, len(in))
	for i, r := range in {
		c := *r
		out[i] = &c
	}
	return out
}

// collect walks scope and returns its files in depth-first listing order.
// complete is false when at least one descendant could not be listed.
func (e *Engine) collect(ctx context.Context, scope string, recursive bool) ([]*types.Entry, bool, error) {
	scope = types.NormalizePath(scope)

	root, err := e.ListChildren(ctx, scope)
	if err != nil {
		return nil, false, err
	}

	var files []*types.Entry
	complete := true

	stack := make([]*types.Entry, 0, len(root))
	pushReversed := func(entries []*types.Entry) {
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, entries[i])
		}
	}
	pushReversed(root)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if e.exclude.IsExcluded(entry.Path, entry.IsDir()) {
			continue
		}
		if entry.IsFile() {
			files = append(files, entry)
			continue
		}
		if !recursive || !entry.IsDir() {
			continue
		}

		children, err := e.ListChildren(ctx, entry.Path)
		if err != nil {
			if isContextErr(err) && ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			complete = false
			e.logger.Warn("Skipping directory that could not be listed",
				logging.F("path", entry.Path),
				logging.F("error", err),
			)
			continue
		}
		pushReversed(children)
	}

	return files, complete, nil
}

// Invalidate drops the cached listing of path and every cached search result
func (e *Engine) Invalidate(path string) int {
	removed := 0
	if e.listings != nil && e.listings.Delete(utils.ListingKeyPrefix+types.NormalizePath(path)) {
		removed++
	}
	if e.results != nil {
		removed += e.results.DeletePattern(func(k string) bool {
			return strings.HasPrefix(k, utils.SearchKeyPrefix)
		})
	}
	return removed
}

// resultKey derives a stable cache key from the filter
func resultKey(f *types.SearchFilter) string {
	norm := *f
	norm.Scope = types.NormalizePath(f.Scope)
	norm.Keyword = strings.ToLower(strings.TrimSpace(f.Keyword))
	exts := normalizeExtensions(f.Extensions)
	sort.Strings(exts)
	norm.Extensions = exts

	data, err := json.Marshal(norm)
	if err != nil {
		return ""
	}
	return utils.SearchKeyPrefix + string(data)
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
