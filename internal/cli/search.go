package cli

import (
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/metrics"
	"github.com/dl-alexandre/ghimg/internal/search"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search files by name, type, size and date",
	Long: `Search walks the repository from --scope and returns every file that
matches all given predicates. The keyword matches file names
case-insensitively; --fuzzy switches to similarity matching.

Examples:
  ghimg search sunset --ext jpg,png
  ghimg search --images-only --size-preset large --sort size --order desc
  ghimg search logo --fuzzy 0.6 --date-preset month`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

var smartCmd = &cobra.Command{
	Use:   "smart <query>",
	Short: "Fuzzy search across the whole repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runSmart,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <prefix>",
	Short: "Suggest file names containing the given text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Repository statistics",
}

var statsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "Count files by extension",
	RunE:  runStatsTypes,
}

var statsSizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "Count files by size bucket",
	RunE:  runStatsSizes,
}

// Command flags
var (
	searchQuery     search.Query
	searchNoHistory bool

	smartThreshold float64
	smartLimit     int
	suggestLimit   int
	statsScope     string
)

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchQuery.Scope, "scope", "/", "Directory to search from")
	f.BoolVar(&searchQuery.Recursive, "recursive", true, "Descend into subdirectories")
	f.StringSliceVar(&searchQuery.Extensions, "ext", nil, "File extensions to include (comma separated)")
	f.BoolVar(&searchQuery.ImagesOnly, "images-only", false, "Only include image files")
	f.StringVar(&searchQuery.MinSize, "min-size", "", "Minimum size, e.g. 10KiB")
	f.StringVar(&searchQuery.MaxSize, "max-size", "", "Maximum size, e.g. 5MB")
	f.StringVar(&searchQuery.SizePreset, "size-preset", "", "Size preset (small, medium, large, xlarge)")
	f.StringVar(&searchQuery.After, "after", "", "Modified on or after (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&searchQuery.Before, "before", "", "Modified on or before (YYYY-MM-DD or RFC 3339)")
	f.StringVar(&searchQuery.DatePreset, "date-preset", "", "Date preset (today, week, month, year)")
	f.StringVar(&searchQuery.Fuzzy, "fuzzy", "", "Fuzzy keyword threshold between 0 and 1")
	f.StringVar(&searchQuery.SortBy, "sort", "", "Sort by name, size, date, type or score")
	f.StringVar(&searchQuery.SortOrder, "order", "", "Sort order (asc, desc)")
	f.IntVar(&searchQuery.Limit, "limit", 0, "Maximum results (0 for all)")
	f.BoolVar(&searchNoHistory, "no-history", false, "Do not record this search")

	smartCmd.Flags().Float64Var(&smartThreshold, "threshold", utils.DefaultSmartThreshold, "Minimum similarity")
	smartCmd.Flags().IntVar(&smartLimit, "limit", utils.DefaultSmartMaxResults, "Maximum results")
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", utils.DefaultSuggestionLimit, "Maximum suggestions")
	statsCmd.PersistentFlags().StringVar(&statsScope, "scope", "/", "Directory to analyse")

	statsCmd.AddCommand(statsTypesCmd)
	statsCmd.AddCommand(statsSizesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(smartCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(statsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "search", nil, err)
	}

	q := searchQuery
	if len(args) == 1 {
		q.Keyword = args[0]
	}
	filter, err := a.search.BuildFilter(q)
	if err != nil {
		return handleError(out, "search", a.reqCtx, err)
	}
	out.Verbose("Searching %s", search.DescribeFilter(filter))

	start := time.Now()
	results, err := a.search.Search(ctx, filter)
	if err != nil {
		return handleError(out, "search", a.reqCtx, err)
	}
	metrics.RecordSearch(time.Since(start), len(results))

	if !searchNoHistory {
		recordHistory(cmd, a, out, filter, len(results))
	}

	return out.WriteSuccess("search", types.SearchResults(results))
}

// recordHistory remembers a search. Failures only produce a warning.
func recordHistory(cmd *cobra.Command, a *app, out *OutputWriter, filter *types.SearchFilter, count int) {
	hist, closeDB, err := openHistory(cmd.Context(), a.cfg)
	if err == nil {
		defer func() { _ = closeDB() }()
		_, err = hist.Add(cmd.Context(), *filter, count)
	}
	if err != nil {
		GetLogger().Warn("Failed to record search history", logging.F("error", err.Error()))
		out.AddWarning("HISTORY_UNAVAILABLE", "search history could not be updated: "+err.Error(), "low")
	}
}

func runSmart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "smart", nil, err)
	}

	if smartThreshold < 0 || smartThreshold > 1 {
		return handleError(out, "smart", a.reqCtx,
			errors.NewInvalidFilter("fuzzyThreshold", "must be between 0 and 1, got %v", smartThreshold))
	}

	results, err := a.search.SmartSearch(ctx, args[0], smartThreshold, smartLimit)
	if err != nil {
		return handleError(out, "smart", a.reqCtx, err)
	}
	return out.WriteSuccess("smart", types.SearchResults(results))
}

// suggestionList renders suggestions one per row
type suggestionList []string

func (s suggestionList) Headers() []string { return []string{"Suggestion"} }

func (s suggestionList) Rows() [][]string {
	rows := make([][]string, 0, len(s))
	for _, name := range s {
		rows = append(rows, []string{name})
	}
	return rows
}

func (s suggestionList) EmptyMessage() string { return "No suggestions" }

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "suggest", nil, err)
	}

	names, err := a.search.Suggestions(ctx, strings.TrimSpace(args[0]), suggestLimit)
	if err != nil {
		return handleError(out, "suggest", a.reqCtx, err)
	}
	return out.WriteSuccess("suggest", suggestionList(names))
}

func runStatsTypes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "stats.types", nil, err)
	}

	stats, err := a.search.FileTypeStats(ctx, statsScope)
	if err != nil {
		return handleError(out, "stats.types", a.reqCtx, err)
	}
	return out.WriteSuccess("stats.types", stats)
}

func runStatsSizes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "stats.sizes", nil, err)
	}

	dist, err := a.search.SizeDistribution(ctx, statsScope)
	if err != nil {
		return handleError(out, "stats.sizes", a.reqCtx, err)
	}
	return out.WriteSuccess("stats.sizes", dist)
}
