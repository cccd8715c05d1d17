package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/dl-alexandre/ghimg/pkg/version"
)

// contentItem is one element of the contents API directory response
type contentItem struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA         string `json:"sha"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

type apiErrorBody struct {
	Message string `json:"message"`
}

// ListDirectory returns the children of path in listing order
func (c *Client) ListDirectory(ctx context.Context, path string) ([]*types.Entry, error) {
	path = types.NormalizePath(path)
	reqCtx := NewRequestContext(BackendName, c.owner, c.repo, path, types.RequestTypeListDirectory)

	return ExecuteWithRetry(ctx, c, reqCtx, func() ([]*types.Entry, error) {
		body, err := c.get(ctx, c.contentsURL(path), utils.GitHubAcceptMedia, path)
		if err != nil {
			return nil, err
		}

		trimmed := strings.TrimSpace(string(body))
		if !strings.HasPrefix(trimmed, "[") {
			return nil, errors.NewRemoteFetchError(path, 0, "path is not a directory", nil)
		}

		var items []contentItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, errors.NewRemoteFetchError(path, 0, "malformed directory listing", nil)
		}

		entries := make([]*types.Entry, 0, len(items))
		for _, item := range items {
			entries = append(entries, item.toEntry())
		}
		return entries, nil
	})
}

// FetchBytes downloads raw object bytes. ref is either an absolute download
// URL or a repository path.
func (c *Client) FetchBytes(ctx context.Context, ref string) ([]byte, error) {
	target := ref
	accept := "application/octet-stream"
	if !strings.HasPrefix(ref, "https://") && !strings.HasPrefix(ref, "http://") {
		target = c.contentsURL(types.NormalizePath(ref))
		accept = "application/vnd.github.raw"
	}
	reqCtx := NewRequestContext(BackendName, c.owner, c.repo, ref, types.RequestTypeFetchBytes)

	return ExecuteWithRetry(ctx, c, reqCtx, func() ([]byte, error) {
		return c.get(ctx, target, accept, ref)
	})
}

func (i contentItem) toEntry() *types.Entry {
	kind := types.EntryKindFile
	if i.Type == "dir" {
		kind = types.EntryKindDirectory
	}
	size := i.Size
	if kind == types.EntryKindDirectory {
		size = 0
	}
	downloadRef := i.DownloadURL
	if downloadRef == "" && kind == types.EntryKindFile {
		downloadRef = i.Path
	}
	return &types.Entry{
		Name:        i.Name,
		Path:        types.NormalizePath(i.Path),
		Kind:        kind,
		Size:        size,
		ContentRef:  i.SHA,
		DownloadRef: downloadRef,
	}
}

func (c *Client) contentsURL(path string) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL)
	sb.WriteString("repos/")
	sb.WriteString(url.PathEscape(c.owner))
	sb.WriteString("/")
	sb.WriteString(url.PathEscape(c.repo))
	sb.WriteString("/contents")
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		sb.WriteString("/")
		sb.WriteString(url.PathEscape(seg))
	}
	if c.ref != "" {
		sb.WriteString("?ref=")
		sb.WriteString(url.QueryEscape(c.ref))
	}
	return sb.String()
}

// get performs a single GET and converts every failure into a RemoteFetchError
func (c *Client) get(ctx context.Context, target, accept, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.NewRemoteFetchError(path, 0, "invalid request", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", utils.GitHubAPIVersion)
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(0, time.Since(start))
		return nil, errors.NewRemoteFetchError(path, 0, "", err)
	}
	defer resp.Body.Close()
	c.observe(resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewRemoteFetchError(path, resp.StatusCode, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rf := errors.NewRemoteFetchError(path, resp.StatusCode, errorMessage(resp, body), nil)
		rf.RetryAfter = retryAfter(resp.Header, time.Now())
		return nil, rf
	}

	return body, nil
}

func (c *Client) observe(status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(BackendName, status, d)
	}
}

func errorMessage(resp *http.Response, body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return "API rate limit exceeded"
	}
	return http.StatusText(resp.StatusCode)
}

// retryAfter reads Retry-After (seconds) or, for exhausted primary rate
// limits, the X-RateLimit-Reset epoch.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if h.Get("X-RateLimit-Remaining") == "0" {
		if v := h.Get("X-RateLimit-Reset"); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				if d := time.Unix(epoch, 0).Sub(now); d > 0 {
					return d
				}
			}
		}
	}
	return 0
}

// String describes the repository the client reads
func (c *Client) String() string {
	ref := c.ref
	if ref == "" {
		ref = "default branch"
	}
	return fmt.Sprintf("github:%s/%s@%s", c.owner, c.repo, ref)
}
