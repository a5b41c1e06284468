// Package api exposes the HTTP interface for the startup-matching service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/cache"
	"github.com/lareunion-tech/startup-matcher/internal/directory"
	"github.com/lareunion-tech/startup-matcher/internal/matcher"
	"github.com/lareunion-tech/startup-matcher/internal/rag"
)

// Server wires HTTP handlers to the cache service and the matcher.
type Server struct {
	router  chi.Router
	cache   *cache.Service
	matcher *matcher.Matcher
	chunker *rag.Chunker
	index   *rag.Index
	logger  *zap.Logger

	// indexedAt tracks which cache generation the embedding index was built
	// from, so the index is rebuilt only when the record set changes.
	mu        sync.Mutex
	indexedAt time.Time
}

// NewServer constructs a Server with middleware and routes. chunker and index
// may be nil when semantic search is disabled; the search endpoint then
// serves the keyword path only.
func NewServer(
	cacheSvc *cache.Service,
	needMatcher *matcher.Matcher,
	chunker *rag.Chunker,
	index *rag.Index,
	logger *zap.Logger,
) *Server {
	s := &Server{
		cache:   cacheSvc,
		matcher: needMatcher,
		chunker: chunker,
		index:   index,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.search)
		r.Post("/combine", s.combine)
		r.Post("/refresh", s.refresh)
		r.Get("/startups", s.listStartups)
		r.Get("/startups/{startup_id}", s.getStartup)
		r.Get("/curated", s.listCurated)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.cache.Entry(); !ok {
		// No cache yet; the first search will trigger a crawl, so the service
		// is still usable.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "cache": "cold"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchRequest struct {
	Need    string        `json:"need"`
	TopK    int           `json:"top_k"`
	Mode    string        `json:"mode"`
	Filters searchFilters `json:"filters"`
}

type searchFilters struct {
	Tags     []string `json:"tags"`
	Domain   string   `json:"domain"`
	Location string   `json:"location"`
}

type searchResponse struct {
	Need    string          `json:"need"`
	Mode    string          `json:"mode"`
	Matches []matcher.Match `json:"matches"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Need == "" {
		writeError(w, http.StatusBadRequest, "need is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	records := s.cache.Records(r.Context())
	filter := rag.Filter{Tags: req.Filters.Tags, Domain: req.Filters.Domain, Location: req.Filters.Location}

	mode := req.Mode
	var matches []matcher.Match
	if mode == "semantic" && s.index != nil {
		s.ensureIndex(r.Context(), records)
		matches = s.matcher.MatchSemantic(r.Context(), req.Need, records, req.TopK, filter)
	} else {
		mode = "keyword"
		matches = s.matcher.MatchFiltered(req.Need, records, req.TopK, filter)
	}

	writeJSON(w, http.StatusOK, searchResponse{Need: req.Need, Mode: mode, Matches: matches})
}

type combineRequest struct {
	Need string `json:"need"`
	TopK int    `json:"top_k"`
}

type combineResponse struct {
	Need         string                `json:"need"`
	Combinations []matcher.Combination `json:"combinations"`
}

func (s *Server) combine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Need == "" {
		writeError(w, http.StatusBadRequest, "need is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}
	records := s.cache.Records(r.Context())
	combos := s.matcher.Combine(req.Need, records, req.TopK)
	writeJSON(w, http.StatusOK, combineResponse{Need: req.Need, Combinations: combos})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	records := s.cache.ForceRefresh(r.Context())
	entry, _ := s.cache.Entry()
	writeJSON(w, http.StatusOK, map[string]any{
		"records": len(records),
		"status":  entry.Status,
		"message": entry.Message,
	})
}

func (s *Server) listStartups(w http.ResponseWriter, r *http.Request) {
	records := s.cache.Records(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"count": len(records), "startups": records})
}

func (s *Server) listCurated(w http.ResponseWriter, r *http.Request) {
	records, err := s.cache.CuratedRecords(r.Context())
	if err != nil {
		s.logger.Error("curated listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "curated records unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(records), "startups": records})
}

func (s *Server) getStartup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "startup_id")
	for _, rec := range s.cache.Records(r.Context()) {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "startup not found")
}

// ensureIndex rebuilds the embedding index when the cached record set has
// changed since the last build. A failed build leaves the index empty and the
// matcher falls back to the keyword path.
func (s *Server) ensureIndex(ctx context.Context, records []directory.StartupRecord) {
	entry, ok := s.cache.Entry()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !entry.LastUpdate.After(s.indexedAt) && s.index.Len() > 0 {
		return
	}
	chunks := s.chunker.ChunkRecords(records)
	if err := s.index.Build(ctx, chunks); err != nil {
		return
	}
	s.indexedAt = entry.LastUpdate
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
