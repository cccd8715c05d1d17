package mocks

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/types"
)

// TreeClient is an in-memory remote tree with failure injection. It
// satisfies store.TreeClient.
type TreeClient struct {
	mu       sync.Mutex
	dirs     map[string][]*types.Entry
	objects  map[string][]byte
	listErr  map[string]error
	fetchErr map[string]error
	lists    map[string]int
	fetches  map[string]int

	// Delay is applied to every call and honours context cancellation
	Delay time.Duration

	// ListDirectoryFunc and FetchBytesFunc, when set, replace the in-memory behaviour
	ListDirectoryFunc func(ctx context.Context, path string) ([]*types.Entry, error)
	FetchBytesFunc    func(ctx context.Context, ref string) ([]byte, error)
}

// NewTreeClient creates an empty tree containing only "/"
func NewTreeClient() *TreeClient {
	return &TreeClient{
		dirs:     map[string][]*types.Entry{"/": {}},
		objects:  make(map[string][]byte),
		listErr:  make(map[string]error),
		fetchErr: make(map[string]error),
		lists:    make(map[string]int),
		fetches:  make(map[string]int),
	}
}

// AddDir creates p and any missing parents
func (m *TreeClient) AddDir(p string) *types.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addDirLocked(types.NormalizePath(p))
}

func (m *TreeClient) addDirLocked(p string) *types.Entry {
	if p == "/" {
		return &types.Entry{Name: "/", Path: "/", Kind: types.EntryKindDirectory}
	}
	parent := types.ParentPath(p)
	m.addDirLocked(parent)

	if _, ok := m.dirs[p]; ok {
		for _, e := range m.dirs[parent] {
			if e.Path == p {
				return e
			}
		}
		return &types.Entry{Name: path.Base(p), Path: p, Kind: types.EntryKindDirectory}
	}
	m.dirs[p] = []*types.Entry{}
	entry := &types.Entry{
		Name:       path.Base(p),
		Path:       p,
		Kind:       types.EntryKindDirectory,
		ContentRef: "tree-" + p,
	}
	m.dirs[parent] = append(m.dirs[parent], entry)
	return entry
}

// AddFile adds a file whose bytes are its own path
func (m *TreeClient) AddFile(p string, size int64) *types.Entry {
	return m.AddFileWith(p, size, time.Time{}, nil)
}

// AddFileWith adds a file with an explicit modification time and content.
// A nil data stores the path as content.
func (m *TreeClient) AddFileWith(p string, size int64, modified time.Time, data []byte) *types.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = types.NormalizePath(p)
	parent := types.ParentPath(p)
	m.addDirLocked(parent)

	if data == nil {
		data = []byte(p)
	}
	entry := &types.Entry{
		Name:        path.Base(p),
		Path:        p,
		Kind:        types.EntryKindFile,
		Size:        size,
		ContentRef:  fmt.Sprintf("sha-%s", p),
		DownloadRef: "raw:" + p,
		ModifiedAt:  modified,
	}
	m.dirs[parent] = append(m.dirs[parent], entry)
	m.objects[entry.DownloadRef] = data
	return entry
}

// FailList makes ListDirectory(p) return err
func (m *TreeClient) FailList(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr[types.NormalizePath(p)] = err
}

// FailFetch makes FetchBytes(ref) return err
func (m *TreeClient) FailFetch(ref string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr[ref] = err
}

// ListCalls returns how often p was listed
func (m *TreeClient) ListCalls(p string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists[types.NormalizePath(p)]
}

// FetchCalls returns how often ref was fetched
func (m *TreeClient) FetchCalls(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[ref]
}

// ListDirectory returns a copy of the children of p in insertion order
func (m *TreeClient) ListDirectory(ctx context.Context, p string) ([]*types.Entry, error) {
	p = types.NormalizePath(p)

	m.mu.Lock()
	m.lists[p]++
	fn := m.ListDirectoryFunc
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.listErr[p]; ok {
		return nil, err
	}
	children, ok := m.dirs[p]
	if !ok {
		return nil, errors.NewRemoteFetchError(p, 404, "Not Found", nil)
	}
	out := make([]*types.Entry, len(children))
	for i, e := range children {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// FetchBytes returns the stored content for ref
func (m *TreeClient) FetchBytes(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	m.fetches[ref]++
	fn := m.FetchBytesFunc
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, ref)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.fetchErr[ref]; ok {
		return nil, err
	}
	data, ok := m.objects[ref]
	if !ok {
		return nil, errors.NewRemoteFetchError(ref, 404, "Not Found", nil)
	}
	return append([]byte(nil), data...), nil
}

func (m *TreeClient) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
