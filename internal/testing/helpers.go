package testing

import (
	"context"
	"time"

	"github.com/dl-alexandre/ghimg/internal/testing/mocks"
	"github.com/dl-alexandre/ghimg/internal/types"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// TestRequestContext creates a standard request context for testing
func TestRequestContext() *types.RequestContext {
	return &types.RequestContext{
		Backend:     "github",
		Owner:       "octo",
		Repository:  "assets",
		Path:        "/",
		RequestType: types.RequestTypeListDirectory,
		TraceID:     "test-trace-id",
	}
}

// TestFile creates a file entry for testing
func TestFile(path string, size int64) *types.Entry {
	path = types.NormalizePath(path)
	e := &types.Entry{Path: path, Kind: types.EntryKindFile, Size: size}
	e.Name = pathBase(path)
	e.ContentRef = "sha-" + path
	e.DownloadRef = "raw:" + path
	return e
}

// TestFileAt creates a file entry with a modification time
func TestFileAt(path string, size int64, modified time.Time) *types.Entry {
	e := TestFile(path, size)
	e.ModifiedAt = modified
	return e
}

// TestDir creates a directory entry for testing
func TestDir(path string) *types.Entry {
	path = types.NormalizePath(path)
	return &types.Entry{Name: pathBase(path), Path: path, Kind: types.EntryKindDirectory}
}

// SampleTree builds the small tree used across engine tests:
//
//	/a.jpg      200000 bytes
//	/b/c.png     50000 bytes
//	/b/d.txt       100 bytes
func SampleTree() *mocks.TreeClient {
	tree := mocks.NewTreeClient()
	tree.AddFile("/a.jpg", 200000)
	tree.AddDir("/b")
	tree.AddFile("/b/c.png", 50000)
	tree.AddFile("/b/d.txt", 100)
	return tree
}

func pathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
