// Package history keeps the recent searches and how often each keyword was
// searched, persisted as JSON strings in a key/value store.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/google/uuid"
)

const (
	// MaxRecords is how many searches are kept, newest first
	MaxRecords = 20
	// DefaultTop is how many frequent keywords Top returns by default
	DefaultTop = 5

	historyKey  = "search_history"
	keywordsKey = "frequent_searches"
)

// KV is the string store history persists to. *DB satisfies it.
type KV interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Record is one remembered search
type Record struct {
	ID          string             `json:"id"`
	Filter      types.SearchFilter `json:"filter"`
	Timestamp   time.Time          `json:"timestamp"`
	ResultCount int                `json:"resultCount"`
}

// KeywordCount is how often a keyword was searched
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Store manages search history
type Store struct {
	mu  sync.Mutex
	kv  KV
	now func() time.Time
}

// NewStore creates a history store over kv
func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Add records a search and bumps its keyword counter
func (s *Store) Add(ctx context.Context, filter types.SearchFilter, resultCount int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	rec := Record{
		ID:          uuid.New().String(),
		Filter:      filter,
		Timestamp:   s.now(),
		ResultCount: resultCount,
	}
	records = append([]Record{rec}, records...)
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}
	if err := s.save(ctx, historyKey, records); err != nil {
		return nil, err
	}

	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		counts, err := s.loadCounts(ctx)
		if err != nil {
			return nil, err
		}
		counts[keyword]++
		if err := s.save(ctx, keywordsKey, counts); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

// List returns the records newest first
func (s *Store) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// Get returns the record with id
func (s *Store) Get(ctx context.Context, id string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], true, nil
		}
	}
	return nil, false, nil
}

// Remove deletes the record with id and reports whether it existed
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords(ctx)
	if err != nil {
		return false, err
	}
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	return true, s.save(ctx, historyKey, kept)
}

// Clear drops all records and keyword counters
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.RemoveItem(ctx, historyKey); err != nil {
		return err
	}
	return s.kv.RemoveItem(ctx, keywordsKey)
}

// Top returns the n most searched keywords, most frequent first
func (s *Store) Top(ctx context.Context, n int) ([]KeywordCount, error) {
	if n <= 0 {
		n = DefaultTop
	}

	s.mu.Lock()
	counts, err := s.loadCounts(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	top := make([]KeywordCount, 0, len(counts))
	for k, c := range counts {
		top = append(top, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Keyword < top[j].Keyword
	})
	if len(top) > n {
		top = top[:n]
	}
	return top, nil
}

func (s *Store) loadRecords(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.load(ctx, historyKey, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) loadCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	if err := s.load(ctx, keywordsKey, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *Store) load(ctx context.Context, key string, v interface{}) error {
	raw, ok, err := s.kv.GetItem(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("corrupt %s entry: %w", key, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.SetItem(ctx, key, string(data))
}

// Records renders history as a table
type Records []Record

func (r Records) Headers() []string {
	return []string{"ID", "When", "Keyword", "Scope", "Results"}
}

func (r Records) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, rec := range r {
		rows = append(rows, []string{
			rec.ID[:min(8, len(rec.ID))],
			rec.Timestamp.Format("2006-01-02 15:04"),
			rec.Filter.Keyword,
			types.NormalizePath(rec.Filter.Scope),
			strconv.Itoa(rec.ResultCount),
		})
	}
	return rows
}

func (r Records) EmptyMessage() string {
	return "No search history"
}
