// Package exclude decides which repository paths a traversal skips.
//
// Patterns follow a small gitignore-like syntax: a trailing "/" names a
// directory and everything below it, a pattern with glob metacharacters is
// matched against the full path and against the base name, and any other
// pattern matches a path, a path prefix or a file's base name.
package exclude

import (
	"path"
	"strings"
)

// Matcher holds the active patterns. A nil Matcher excludes nothing.
type Matcher struct {
	patterns []string
}

// DefaultPatterns are skipped in every repository
func DefaultPatterns() []string {
	return []string{
		".git/",
		".github/",
		"node_modules/",
		"vendor/",
		".DS_Store",
		"Thumbs.db",
		"._*",
	}
}

// New returns a matcher for the default patterns plus extra
func New(extra []string) *Matcher {
	merged := append([]string{}, DefaultPatterns()...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			merged = append(merged, p)
		}
	}
	return &Matcher{patterns: merged}
}

// Patterns returns the active patterns in evaluation order
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// IsExcluded reports whether the entry at p should be skipped. p may be
// slash-rooted ("/a/b") or relative ("a/b").
func (m *Matcher) IsExcluded(p string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	if rel == "" {
		return false
	}
	base := path.Base(rel)

	for _, pat := range m.patterns {
		switch {
		case strings.HasSuffix(pat, "/"):
			dir := strings.TrimSuffix(pat, "/")
			if rel == dir || strings.HasPrefix(rel, dir+"/") || (isDir && base == dir) || strings.Contains(rel, "/"+dir+"/") {
				return true
			}
		case strings.ContainsAny(pat, "*?["):
			if ok, _ := path.Match(pat, rel); ok {
				return true
			}
			if ok, _ := path.Match(pat, base); ok {
				return true
			}
		default:
			if rel == pat || strings.HasPrefix(rel, pat+"/") {
				return true
			}
			if !isDir && base == pat {
				return true
			}
		}
	}
	return false
}
