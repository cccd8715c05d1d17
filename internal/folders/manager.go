package folders

import (
	"context"

	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// Lister returns the children of a directory. search.Engine satisfies it
// with cached listings.
type Lister interface {
	ListChildren(ctx context.Context, path string) ([]*types.Entry, error)
}

// Manager handles folder browsing
type Manager struct {
	lister Lister
	logger logging.Logger
}

// NewManager creates a new folder manager
func NewManager(lister Lister, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{lister: lister, logger: logger}
}

// Structure splits the directory at path into sub-folders and image files
func (m *Manager) Structure(ctx context.Context, path string) (*types.FolderStructure, error) {
	path = types.NormalizePath(path)
	entries, err := m.lister.ListChildren(ctx, path)
	if err != nil {
		return nil, err
	}

	result := &types.FolderStructure{
		Path:    path,
		Folders: []*types.Entry{},
		Files:   []*types.Entry{},
	}
	for _, e := range entries {
		switch {
		case e.IsDir():
			result.Folders = append(result.Folders, e)
		case e.IsFile() && utils.IsImageFile(e.Extension()):
			result.Files = append(result.Files, e)
		}
	}
	return result, nil
}

// Tree returns the folders below path down to maxDepth levels. A folder
// whose listing fails is kept with no children; only a failure to list path
// itself is returned.
func (m *Manager) Tree(ctx context.Context, path string, maxDepth int) (types.FolderTree, error) {
	if maxDepth <= 0 {
		maxDepth = utils.DefaultFolderTree
	}
	path = types.NormalizePath(path)

	entries, err := m.lister.ListChildren(ctx, path)
	if err != nil {
		return nil, err
	}
	return m.buildLevel(ctx, entries, 1, maxDepth)
}

func (m *Manager) buildLevel(ctx context.Context, entries []*types.Entry, depth, maxDepth int) (types.FolderTree, error) {
	nodes := types.FolderTree{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := &types.FolderNode{Name: e.Name, Path: e.Path, Children: []*types.FolderNode{}}
		nodes = append(nodes, node)

		children, err := m.lister.ListChildren(ctx, e.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("Skipping folder that could not be listed",
				logging.F("path", e.Path),
				logging.F("error", err),
			)
			continue
		}
		node.HasImages = containsImages(children)

		if depth < maxDepth {
			sub, err := m.buildLevel(ctx, children, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			node.Children = sub
		}
	}
	return nodes, nil
}

func containsImages(entries []*types.Entry) bool {
	for _, e := range entries {
		if e.IsFile() && utils.IsImageFile(e.Extension()) {
			return true
		}
	}
	return false
}
