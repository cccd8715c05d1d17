package cache

import (
	"context"
	"time"

	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// Settings sizes one cache instance
type Settings struct {
	Size int
	TTL  time.Duration
}

// SetConfig sizes the three caches and the sweep period
type SetConfig struct {
	Search        Settings
	Objects       Settings
	Listings      Settings
	SweepInterval time.Duration
}

// DefaultSetConfig returns the built-in sizes and TTLs
func DefaultSetConfig() SetConfig {
	return SetConfig{
		Search:        Settings{Size: utils.SearchCacheSize, TTL: utils.SearchCacheTTL},
		Objects:       Settings{Size: utils.ObjectCacheSize, TTL: utils.ObjectCacheTTL},
		Listings:      Settings{Size: utils.ListingCacheSize, TTL: utils.ListingCacheTTL},
		SweepInterval: utils.CacheSweepEvery,
	}
}

// Set owns the caches of one process: search results (short TTL), fetched
// objects keyed by content reference (long TTL) and directory listings.
type Set struct {
	Search   *Cache[[]*types.SearchResult]
	Objects  *Cache[[]byte]
	Listings *Cache[[]*types.Entry]

	janitor *Janitor
}

// NewSet builds the three caches. opts apply to each (clock, observer).
func NewSet(cfg SetConfig, logger logging.Logger, opts ...Option) *Set {
	with := func(name string) []Option {
		return append(append([]Option{}, opts...), WithName(name))
	}
	s := &Set{
		Search:   New[[]*types.SearchResult](cfg.Search.Size, cfg.Search.TTL, with("search")...),
		Objects:  New[[]byte](cfg.Objects.Size, cfg.Objects.TTL, with("objects")...),
		Listings: New[[]*types.Entry](cfg.Listings.Size, cfg.Listings.TTL, with("listings")...),
	}
	s.janitor = NewJanitor(cfg.SweepInterval, logger, s.Search, s.Objects, s.Listings)
	return s
}

// Start begins periodic sweeping
func (s *Set) Start(ctx context.Context) {
	s.janitor.Start(ctx)
}

// Close stops the sweeper
func (s *Set) Close() error {
	s.janitor.Stop()
	return nil
}

// Sweep removes expired records from all caches now
func (s *Set) Sweep() int {
	return s.janitor.Sweep()
}

// Clear empties every cache
func (s *Set) Clear() {
	s.Search.Clear()
	s.Objects.Clear()
	s.Listings.Clear()
}

// Stats returns one snapshot per cache
func (s *Set) Stats() []Stats {
	return []Stats{s.Search.Stats(), s.Objects.Stats(), s.Listings.Stats()}
}
