package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SortKey selects the field results are ordered by
type SortKey string

const (
	SortByName  SortKey = "name"
	SortBySize  SortKey = "size"
	SortByDate  SortKey = "date"
	SortByType  SortKey = "type"
	SortByScore SortKey = "score"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SearchFilter is a conjunction of optional predicates. A nil pointer or an
// empty slice/string leaves the corresponding dimension unconstrained.
type SearchFilter struct {
	// Keyword is matched case-insensitively against the entry name.
	Keyword string `json:"keyword,omitempty"`
	// FuzzyThreshold switches keyword matching from plain substring to
	// similarity >= threshold.
	FuzzyThreshold *float64 `json:"fuzzyThreshold,omitempty"`

	Extensions []string `json:"extensions,omitempty"`
	ImagesOnly bool     `json:"imagesOnly,omitempty"`

	MinSize *int64 `json:"minSize,omitempty"`
	MaxSize *int64 `json:"maxSize,omitempty"`

	ModifiedAfter  *time.Time `json:"modifiedAfter,omitempty"`
	ModifiedBefore *time.Time `json:"modifiedBefore,omitempty"`

	Scope     string `json:"scope"`
	Recursive bool   `json:"recursive"`

	SortBy     SortKey   `json:"sortBy,omitempty"`
	SortOrder  SortOrder `json:"sortOrder,omitempty"`
	MaxResults int       `json:"maxResults,omitempty"`
}

// HasKeyword reports whether a keyword predicate is active
func (f *SearchFilter) HasKeyword() bool {
	return strings.TrimSpace(f.Keyword) != ""
}

// IsFuzzy reports whether keyword matching uses a similarity threshold
func (f *SearchFilter) IsFuzzy() bool {
	return f.FuzzyThreshold != nil
}

// ActivePredicates counts the constrained dimensions, used for display.
func (f *SearchFilter) ActivePredicates() int {
	count := 0
	if f.HasKeyword() {
		count++
	}
	if len(f.Extensions) > 0 || f.ImagesOnly {
		count++
	}
	if f.MinSize != nil || f.MaxSize != nil {
		count++
	}
	if f.ModifiedAfter != nil || f.ModifiedBefore != nil {
		count++
	}
	if NormalizePath(f.Scope) != "/" {
		count++
	}
	return count
}

// SearchResult is an Entry augmented with a score and its parent directory
type SearchResult struct {
	Entry
	Directory string  `json:"directory"`
	Score     float64 `json:"score"`
}

// SearchResults is a result set rendered as a table
type SearchResults []*SearchResult

func (r SearchResults) Headers() []string {
	return []string{"Path", "Size", "Score", "SHA"}
}

func (r SearchResults) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, res := range r {
		rows = append(rows, []string{
			truncateText(res.Path, 60),
			humanize.IBytes(uint64(res.Size)),
			strconv.FormatFloat(res.Score, 'f', 2, 64),
			truncateText(res.ContentRef, 10),
		})
	}
	return rows
}

func (r SearchResults) EmptyMessage() string {
	return "No matching files"
}

// Listing is a directory listing rendered as a table
type Listing []*Entry

func (l Listing) Headers() []string {
	return []string{"Name", "Type", "Size", "Path"}
}

func (l Listing) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		size := "-"
		if e.IsFile() {
			size = humanize.IBytes(uint64(e.Size))
		}
		rows = append(rows, []string{truncateText(e.Name, 40), string(e.Kind), size, truncateText(e.Path, 60)})
	}
	return rows
}

func (l Listing) EmptyMessage() string {
	return "Directory is empty"
}

// FolderStructure splits one directory into sub-folders and files
type FolderStructure struct {
	Path    string   `json:"path"`
	Folders []*Entry `json:"folders"`
	Files   []*Entry `json:"files"`
}

// FolderNode is one directory in a bounded-depth folder tree
type FolderNode struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	HasImages bool          `json:"hasImages"`
	Children  []*FolderNode `json:"children"`
}

// FolderTree renders nested folder nodes as an indented table
type FolderTree []*FolderNode

func (t FolderTree) Headers() []string {
	return []string{"Folder", "Images"}
}

func (t FolderTree) Rows() [][]string {
	var rows [][]string
	var walk func(nodes []*FolderNode, depth int)
	walk = func(nodes []*FolderNode, depth int) {
		for _, n := range nodes {
			rows = append(rows, []string{strings.Repeat("  ", depth) + n.Name, fmt.Sprintf("%t", n.HasImages)})
			walk(n.Children, depth+1)
		}
	}
	walk(t, 0)
	return rows
}

func (t FolderTree) EmptyMessage() string {
	return "No folders"
}

// TypeStats counts files per extension
type TypeStats map[string]int

func (s TypeStats) Headers() []string {
	return []string{"Type", "Files"}
}

// Rows lists the most common types first
func (s TypeStats) Rows() [][]string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if s[keys[i]] != s[keys[j]] {
			return s[keys[i]] > s[keys[j]]
		}
		return keys[i] < keys[j]
	})
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(s[k])})
	}
	return rows
}

func (s TypeStats) EmptyMessage() string {
	return "No files"
}

// SizeDistribution counts files per size bucket
type SizeDistribution struct {
	Small  int `json:"small"`
	Medium int `json:"medium"`
	Large  int `json:"large"`
	XLarge int `json:"xlarge"`
}

func (d *SizeDistribution) Headers() []string {
	return []string{"Small (<100KiB)", "Medium (<1MiB)", "Large (<5MiB)", "XLarge"}
}

func (d *SizeDistribution) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(d.Small), strconv.Itoa(d.Medium), strconv.Itoa(d.Large), strconv.Itoa(d.XLarge),
	}}
}

func (d *SizeDistribution) EmptyMessage() string {
	return "No files"
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
