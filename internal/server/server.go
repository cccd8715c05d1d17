// Package server exposes search, browsing and bulk transfer over an HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/files"
	"github.com/dl-alexandre/ghimg/internal/folders"
	"github.com/dl-alexandre/ghimg/internal/history"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/metrics"
	"github.com/dl-alexandre/ghimg/internal/search"
	"github.com/dl-alexandre/ghimg/internal/transfer"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Deps are the engines the server routes to. History is optional.
type Deps struct {
	Search   *search.Engine
	Folders  *folders.Manager
	Files    *files.Manager
	Transfer *transfer.Engine
	Caches   *cache.Set
	History  *history.Store
	Logger   logging.Logger
}

// Server is the HTTP API server
type Server struct {
	deps   Deps
	logger logging.Logger
}

// New creates a server
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.NewNoOpLogger()
	}
	return &Server{deps: deps, logger: deps.Logger}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/smart", s.handleSmart)
		r.Get("/suggest", s.handleSuggest)
		r.Get("/list", s.handleList)
		r.Get("/list/*", s.handleList)
		r.Get("/tree", s.handleTree)
		r.Get("/tree/*", s.handleTree)
		r.Get("/content/*", s.handleContent)
		r.Get("/stats/types", s.handleTypeStats)
		r.Get("/stats/sizes", s.handleSizeStats)
		r.Post("/transfer", s.handleTransfer)
		r.Get("/cache", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
		r.Get("/history", s.handleHistory)
		r.Get("/history/top", s.handleTopKeywords)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", logging.F("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// observe logs each request and records it by route pattern
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		traceID := middleware.GetReqID(r.Context())
		if traceID == "" {
			traceID = uuid.New().String()
		}
		r = r.WithContext(logging.ContextWithTraceID(r.Context(), traceID))

		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(r.Method, pattern, status, time.Since(start))
		s.logger.WithTraceID(traceID).Debug("HTTP request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", status),
			logging.F("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := search.Query{
		Keyword:    q.Get("q"),
		Fuzzy:      q.Get("fuzzy"),
		Extensions: q["ext"],
		ImagesOnly: parseBool(q.Get("images")),
		MinSize:    q.Get("minSize"),
		MaxSize:    q.Get("maxSize"),
		SizePreset: q.Get("size"),
		After:      q.Get("after"),
		Before:     q.Get("before"),
		DatePreset: q.Get("date"),
		Scope:      q.Get("scope"),
		Recursive:  q.Get("recursive") == "" || parseBool(q.Get("recursive")),
		SortBy:     q.Get("sort"),
		SortOrder:  q.Get("order"),
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.writeError(w, r, errors.NewInvalidFilter("maxResults", "not a number: %q", q.Get("limit")))
		return
	}
	query.Limit = limit

	filter, err := s.deps.Search.BuildFilter(query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	results, err := s.deps.Search.Search(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.RecordSearch(time.Since(start), len(results))

	if s.deps.History != nil {
		if _, err := s.deps.History.Add(r.Context(), *filter, len(results)); err != nil {
			s.logger.Warn("Failed to record search history", logging.F("error", err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filter":  filter,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleSmart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold := 0.0
	if raw := q.Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidFilter("fuzzyThreshold", "not a number: %q", raw))
			return
		}
		threshold = v
	}
	limit, err := intParam(q.Get("limit"), 0)
	if err != nil {
		s.writeError(w, r, errors.NewInvalidFilter("maxResults", "not a number: %q", q.Get("limit")))
		return
	}

	results, err := s.deps.Search.SmartSearch(r.Context(), q.Get("q"), threshold, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(results), "results": results})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		s.writeError(w, r, errors.NewInvalidFilter("limit", "not a number"))
		return
	}
	names, err := s.deps.Search.Suggestions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": names})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Search.ListChildren(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	depth, err := intParam(r.URL.Query().Get("depth"), utils.DefaultFolderTree)
	if err != nil {
		s.writeError(w, r, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, "depth must be a number").Build()))
		return
	}
	tree, err := s.deps.Folders.Tree(r.Context(), chi.URLParam(r, "*"), depth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"folders": tree})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Files.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	if f.Entry.ContentRef != "" {
		w.Header().Set("ETag", strconv.Quote(f.Entry.ContentRef))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func (s *Server) handleTypeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Search.FileTypeStats(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSizeStats(w http.ResponseWriter, r *http.Request) {
	dist, err := s.deps.Search.SizeDistribution(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

type transferRequest struct {
	Tasks []types.TransferTask `json:"tasks"`
	Name  string               `json:"name"`
}

// handleTransfer buffers the archive so that a failed batch can still be
// answered with a JSON error instead of a truncated zip.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid request body: %s", err)).Build()))
		return
	}

	batch, err := s.deps.Transfer.Transfer(r.Context(), req.Tasks, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := req.Name
	if name == "" {
		name = transfer.DefaultArchiveName(time.Now())
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(batch.Archive)))
	w.Header().Set("X-Transfer-Succeeded", strconv.Itoa(batch.Succeeded))
	w.Header().Set("X-Transfer-Failed", strconv.Itoa(batch.Failed))
	w.Header().Set("X-Transfer-Total", strconv.Itoa(batch.Total))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(batch.Archive)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"caches": s.deps.Caches.Stats()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Caches.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"history": []history.Record{}})
		return
	}
	records, err := s.deps.History.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": records})
}

func (s *Server) handleTopKeywords(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"keywords": []history.KeywordCount{}})
		return
	}
	n, err := intParam(r.URL.Query().Get("n"), history.DefaultTop)
	if err != nil {
		s.writeError(w, r, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, "n must be a number").Build()))
		return
	}
	top, err := s.deps.History.Top(r.Context(), n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keywords": top})
}
