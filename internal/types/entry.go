package types

import (
	"path"
	"strings"
	"time"
)

// EntryKind distinguishes files from directories in the remote tree
type EntryKind string

const (
	EntryKindFile      EntryKind = "file"
	EntryKindDirectory EntryKind = "dir"
)

// Entry is one node in the remote tree
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Kind        EntryKind `json:"type"`
	Size        int64     `json:"size"`
	ContentRef  string    `json:"sha"`
	DownloadRef string    `json:"downloadUrl,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt,omitempty"`
}

// IsDir reports whether the entry is a directory
func (e *Entry) IsDir() bool {
	return e.Kind == EntryKindDirectory
}

// IsFile reports whether the entry is a file
func (e *Entry) IsFile() bool {
	return e.Kind == EntryKindFile
}

// Extension returns the lower-cased extension without the leading dot,
// or "" when the name has none.
func (e *Entry) Extension() string {
	return FileExtension(e.Name)
}

// Directory returns the parent path of the entry, "/" for top-level entries.
func (e *Entry) Directory() string {
	return ParentPath(e.Path)
}

// FileExtension returns the lower-cased extension of name without the dot.
func FileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// NormalizePath converts a user supplied path into the canonical
// slash-rooted form used for cache keys: "/", "/a", "/a/b".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean("/" + strings.Trim(p, "/"))
	return cleaned
}

// ParentPath returns the canonical parent of p.
func ParentPath(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return "/"
	}
	return path.Dir(p)
}
