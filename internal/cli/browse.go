package cli

import (
	"fmt"
	"path/filepath"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the entries of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Show the folder tree below a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Download a single file",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

// Command flags
var (
	lsImagesOnly bool
	treeDepth    int
	getOutput    string
)

func init() {
	lsCmd.Flags().BoolVar(&lsImagesOnly, "images-only", false, "Show folders and image files only")
	treeCmd.Flags().IntVar(&treeDepth, "depth", utils.DefaultFolderTree, "Maximum depth to descend")
	getCmd.Flags().StringVarP(&getOutput, "file", "o", "", "Output path (default: the file name)")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(getCmd)
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "/"
	}
	return args[0]
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "ls", nil, err)
	}

	if lsImagesOnly {
		structure, err := a.folders.Structure(ctx, pathArg(args))
		if err != nil {
			return handleError(out, "ls", a.reqCtx, err)
		}
		entries := append(append(types.Listing{}, structure.Folders...), structure.Files...)
		return out.WriteSuccess("ls", entries)
	}

	entries, err := a.search.ListChildren(ctx, pathArg(args))
	if err != nil {
		return handleError(out, "ls", a.reqCtx, err)
	}
	return out.WriteSuccess("ls", types.Listing(entries))
}

func runTree(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "tree", nil, err)
	}

	if treeDepth < 1 {
		return handleError(out, "tree", a.reqCtx, utils.NewAppError(
			utils.NewCLIError(utils.ErrCodeInvalidArgument, "depth must be at least 1").Build()))
	}

	tree, err := a.folders.Tree(ctx, pathArg(args), treeDepth)
	if err != nil {
		return handleError(out, "tree", a.reqCtx, err)
	}
	return out.WriteSuccess("tree", tree)
}

// downloadResult describes a file written by `get`
type downloadResult struct {
	Path     string `json:"path"`
	Output   string `json:"output"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Cached   bool   `json:"cached"`
}

func (d *downloadResult) Headers() []string {
	return []string{"Path", "Output", "Size", "Type"}
}

func (d *downloadResult) Rows() [][]string {
	return [][]string{{d.Path, d.Output, humanize.IBytes(uint64(d.Size)), d.MimeType}}
}

func (d *downloadResult) EmptyMessage() string {
	return "Nothing downloaded"
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "get", nil, err)
	}

	f, err := a.files.Get(ctx, args[0])
	if err != nil {
		return handleError(out, "get", a.reqCtx, err)
	}

	target := getOutput
	if target == "" {
		target = f.Entry.Name
	}
	if err := a.files.Save(f.Data, target); err != nil {
		return handleError(out, "get", a.reqCtx, utils.WrapAppError(
			utils.NewCLIError(utils.ErrCodeInvalidPath, fmt.Sprintf("failed to write %s: %v", target, err)).Build(), err))
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	out.Log("Downloaded %s (%s) to %s", f.Entry.Path, humanize.IBytes(uint64(len(f.Data))), abs)
	return out.WriteSuccess("get", &downloadResult{
		Path:     f.Entry.Path,
		Output:   abs,
		Size:     int64(len(f.Data)),
		MimeType: f.MimeType,
		Cached:   f.Cached,
	})
}
