package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/dl-alexandre/ghimg/internal/history"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Search history",
	Long:  "Commands for viewing and managing remembered searches",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent searches, newest first",
	RunE:  runHistoryList,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove one search from the history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryRemove,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all history and keyword counts",
	RunE:  runHistoryClear,
}

var historyTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most frequently searched keywords",
	RunE:  runHistoryTop,
}

var historyTopN int

func init() {
	historyTopCmd.Flags().IntVarP(&historyTopN, "number", "n", history.DefaultTop, "Number of keywords to show")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyRemoveCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyTopCmd)
	rootCmd.AddCommand(historyCmd)
}

// keywordCounts renders the frequent keywords table
type keywordCounts []history.KeywordCount

func (k keywordCounts) Headers() []string { return []string{"Keyword", "Searches"} }

func (k keywordCounts) Rows() [][]string {
	rows := make([][]string, 0, len(k))
	for _, kc := range k {
		rows = append(rows, []string{kc.Keyword, strconv.Itoa(kc.Count)})
	}
	return rows
}

func (k keywordCounts) EmptyMessage() string { return "No keywords searched yet" }

// withHistory opens the history store for the duration of fn
func withHistory(ctx context.Context, fn func(*history.Store) error) error {
	cfg, err := config.Load(GetGlobalFlags().Config)
	if err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}
	store, closeDB, err := openHistory(ctx, cfg)
	if err != nil {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInternalError,
			fmt.Sprintf("failed to open history: %v", err)).Build(), err)
	}
	defer func() { _ = closeDB() }()
	return fn(store)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)
	var records []history.Record
	err := withHistory(cmd.Context(), func(s *history.Store) error {
		var err error
		records, err = s.List(cmd.Context())
		return err
	})
	if err != nil {
		return handleError(out, "history.list", nil, err)
	}
	return out.WriteSuccess("history.list", history.Records(records))
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)
	var removed bool
	err := withHistory(cmd.Context(), func(s *history.Store) error {
		var err error
		removed, err = s.Remove(cmd.Context(), args[0])
		return err
	})
	if err != nil {
		return handleError(out, "history.remove", nil, err)
	}
	if !removed {
		return handleError(out, "history.remove", nil, utils.NewAppError(
			utils.NewCLIError(utils.ErrCodeFileNotFound, fmt.Sprintf("no history record with id %s", args[0])).Build()))
	}

	out.Log("Removed history record %s", args[0])
	return out.WriteSuccess("history.remove", map[string]interface{}{
		"id":      args[0],
		"removed": true,
	})
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)
	err := withHistory(cmd.Context(), func(s *history.Store) error {
		return s.Clear(cmd.Context())
	})
	if err != nil {
		return handleError(out, "history.clear", nil, err)
	}

	out.Log("Search history cleared")
	return out.WriteSuccess("history.clear", map[string]interface{}{"cleared": true})
}

func runHistoryTop(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd)
	var top []history.KeywordCount
	err := withHistory(cmd.Context(), func(s *history.Store) error {
		var err error
		top, err = s.Top(cmd.Context(), historyTopN)
		return err
	})
	if err != nil {
		return handleError(out, "history.top", nil, err)
	}
	return out.WriteSuccess("history.top", keywordCounts(top))
}
