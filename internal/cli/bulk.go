package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/metrics"
	"github.com/dl-alexandre/ghimg/internal/search"
	"github.com/dl-alexandre/ghimg/internal/transfer"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk [paths...]",
	Short: "Download many files into one zip archive",
	Long: `Bulk fetches every given file and writes the ones that arrived into a
single zip archive. A file that cannot be fetched is reported and skipped;
the command fails only when no file could be fetched.

Files can be named directly or selected with --search.

Examples:
  ghimg bulk /photos/a.jpg /photos/b.png -o photos.zip
  ghimg bulk --search sunset --scope /photos --concurrency 4`,
	RunE: runBulk,
}

// Command flags
var (
	bulkOutput      string
	bulkConcurrency int
	bulkLevel       int
	bulkKeyword     string
	bulkScope       string
	bulkExtensions  []string
)

func init() {
	bulkCmd.Flags().StringVarP(&bulkOutput, "file", "o", "", "Archive path (default: images-<timestamp>.zip)")
	bulkCmd.Flags().IntVar(&bulkConcurrency, "concurrency", 0, "Parallel downloads (default from config)")
	bulkCmd.Flags().IntVar(&bulkLevel, "level", -1, "Deflate level 0-9 (default from config)")
	bulkCmd.Flags().StringVar(&bulkKeyword, "search", "", "Add every image whose name contains this keyword")
	bulkCmd.Flags().StringVar(&bulkScope, "scope", "/", "Directory searched by --search")
	bulkCmd.Flags().StringSliceVar(&bulkExtensions, "ext", nil, "Restrict --search to these extensions")

	rootCmd.AddCommand(bulkCmd)
}

// bulkResult is the outcome of a bulk download
type bulkResult struct {
	types.TransferSummary
	Results []types.TaskResult `json:"results"`
	Skipped []string           `json:"skipped,omitempty"`
}

func (b *bulkResult) Headers() []string {
	return []string{"Name", "State", "Size", "Error"}
}

func (b *bulkResult) Rows() [][]string {
	rows := make([][]string, 0, len(b.Results))
	for _, r := range b.Results {
		size := "-"
		if r.State == types.TaskSucceeded {
			size = humanize.IBytes(uint64(r.Size))
		}
		rows = append(rows, []string{r.Task.TargetName, string(r.State), size, r.Error})
	}
	return rows
}

func (b *bulkResult) EmptyMessage() string {
	return "No files transferred"
}

func runBulk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "bulk", nil, err)
	}

	var (
		tasks   []types.TransferTask
		skipped []string
	)
	for _, p := range args {
		entry, err := a.files.Resolve(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return handleError(out, "bulk", a.reqCtx, ctx.Err())
			}
			skipped = append(skipped, p)
			out.AddWarning("PATH_SKIPPED", fmt.Sprintf("%s: %v", p, err), "medium")
			continue
		}
		tasks = append(tasks, types.TransferTask{RemoteRef: entry.DownloadRef, TargetName: entry.Name})
	}

	if bulkKeyword != "" {
		filter, err := a.search.BuildFilter(search.Query{
			Keyword:    bulkKeyword,
			Extensions: bulkExtensions,
			ImagesOnly: true,
			Scope:      bulkScope,
			Recursive:  true,
			SortBy:     string(types.SortByName),
		})
		if err != nil {
			return handleError(out, "bulk", a.reqCtx, err)
		}
		results, err := a.search.Search(ctx, filter)
		if err != nil {
			return handleError(out, "bulk", a.reqCtx, err)
		}
		for _, r := range results {
			tasks = append(tasks, types.TransferTask{RemoteRef: r.Entry.DownloadRef, TargetName: r.Entry.Name})
		}
	}

	engine := a.transfer
	if bulkConcurrency > 0 || bulkLevel >= 0 {
		opts := transfer.Options{
			Concurrency:      a.cfg.TransferConcurrency,
			CompressionLevel: a.cfg.CompressionLevel,
			Logger:           GetLogger(),
			Observer:         metrics.Observer{},
		}
		if bulkConcurrency > 0 {
			opts.Concurrency = bulkConcurrency
		}
		if bulkLevel >= 0 {
			opts.CompressionLevel = bulkLevel
		}
		engine = transfer.New(a.client, opts)
	}

	target := bulkOutput
	if target == "" {
		target = transfer.DefaultArchiveName(time.Now())
	}

	batch, err := writeArchive(cmd, engine, tasks, target, out)
	if err != nil {
		return handleError(out, "bulk", a.reqCtx, err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	summary := batch.Summary()
	summary.Output = abs
	result := &bulkResult{TransferSummary: summary, Results: batch.Results, Skipped: skipped}

	out.Log("Wrote %d of %d files (%s) to %s",
		batch.Succeeded, batch.Total, humanize.IBytes(uint64(batch.ArchiveSize)), abs)

	if batch.Failed > 0 || len(skipped) > 0 {
		out.AddWarning(utils.ErrCodeBatchPartialFailure,
			fmt.Sprintf("%d file(s) could not be fetched", batch.Failed+len(skipped)), "medium")
		if err := out.WriteSuccess("bulk", result); err != nil {
			return err
		}
		return &exitError{code: utils.ExitBatchPartialFailure}
	}
	return out.WriteSuccess("bulk", result)
}

// writeArchive streams the batch into a temporary file next to target and
// renames it into place once at least one file was stored.
func writeArchive(cmd *cobra.Command, engine *transfer.Engine, tasks []types.TransferTask, target string, out *OutputWriter) (*types.TransferBatch, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".ghimg-*.zip.part")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	progress := func(p types.TransferProgress) {
		out.Log("[%d/%d] %s", p.Current, p.Total, p.CurrentFile)
	}

	batch, err := engine.TransferTo(cmd.Context(), tmp, tasks, progress)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		if batch != nil {
			GetLogger().Warn("Bulk download aborted",
				logging.F("succeeded", batch.Succeeded),
				logging.F("failed", batch.Failed),
				logging.F("total", batch.Total),
			)
		}
		return nil, err
	}

	if err := os.Rename(tmpName, target); err != nil {
		return nil, err
	}
	committed = true
	return batch, nil
}
