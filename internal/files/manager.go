package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/gabriel-vasile/mimetype"
)

// Fetcher retrieves raw object bytes
type Fetcher interface {
	FetchBytes(ctx context.Context, ref string) ([]byte, error)
}

// Lister returns the children of a directory
type Lister interface {
	ListChildren(ctx context.Context, path string) ([]*types.Entry, error)
}

// Manager handles single-file operations
type Manager struct {
	fetcher Fetcher
	lister  Lister
	objects *cache.Cache[[]byte]
	logger  logging.Logger
}

// NewManager creates a new file manager. A nil objects cache disables
// content memoization.
func NewManager(fetcher Fetcher, lister Lister, objects *cache.Cache[[]byte], logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{
		fetcher: fetcher,
		lister:  lister,
		objects: objects,
		logger:  logger,
	}
}

// File is a downloaded object
type File struct {
	Entry    *types.Entry `json:"entry"`
	MimeType string       `json:"mimeType"`
	Data     []byte       `json:"-"`
	Cached   bool         `json:"cached"`
}

// Resolve finds the file entry at path by listing its parent
func (m *Manager) Resolve(ctx context.Context, path string) (*types.Entry, error) {
	path = types.NormalizePath(path)
	if path == "/" {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidPath,
			"the repository root is not a file").Build())
	}

	entries, err := m.lister.ListChildren(ctx, types.ParentPath(path))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Path != path {
			continue
		}
		if !e.IsFile() {
			return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidPath,
				fmt.Sprintf("%s is a directory", path)).Build())
		}
		return e, nil
	}
	return nil, errors.NewRemoteFetchError(path, 404, "Not Found", nil)
}

// Download fetches ref, reading through the object cache keyed by
// contentRef. Objects are immutable per contentRef so cached bytes never go
// stale; an empty contentRef bypasses the cache.
func (m *Manager) Download(ctx context.Context, ref, contentRef string) ([]byte, bool, error) {
	key := utils.ObjectKeyPrefix + contentRef
	if m.objects != nil && contentRef != "" {
		if data, ok := m.objects.Get(key); ok {
			return data, true, nil
		}
	}

	data, err := m.fetcher.FetchBytes(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if m.objects != nil && contentRef != "" && ctx.Err() == nil {
		m.objects.Set(key, data)
	}
	return data, false, nil
}

// Get resolves path and downloads it
func (m *Manager) Get(ctx context.Context, path string) (*File, error) {
	entry, err := m.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	data, cached, err := m.Download(ctx, entry.DownloadRef, entry.ContentRef)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Downloaded file",
		logging.F("path", entry.Path),
		logging.F("size", len(data)),
		logging.F("cached", cached),
	)

	return &File{
		Entry:    entry,
		MimeType: mimetype.Detect(data).String(),
		Data:     data,
		Cached:   cached,
	}, nil
}

// Save writes data to outputPath through a temp file in the same directory,
// creating parent directories. An existing file is only replaced once the
// new content is complete.
func (m *Manager) Save(data []byte, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidPath,
			fmt.Sprintf("Failed to create directory: %s", err)).Build())
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+"-*.part")
	if err != nil {
		return saveError(err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return saveError(err)
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return saveError(err)
	}
	committed = true
	return nil
}

func saveError(err error) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidPath,
		fmt.Sprintf("Failed to write file: %s", err)).Build())
}
