// Package handler exposes the indexer over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/cache"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/server/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/tracing"
)

const maxBodyBytes = 16 << 20

// Index is the part of the indexer facade the handlers read from.
type Index interface {
	DocumentProperties(id docid.ObjectID) (index.Properties, bool, error)
	Flush() error
	Stats() (indexer.Stats, error)
}

// Compactor runs a compaction, coalescing concurrent requests.
type Compactor interface {
	Compact(ctx context.Context) error
}

type Config struct {
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	index     Index
	applier   *ingest.Applier
	executor  *executor.Executor
	cache     *cache.QueryCache
	compactor Compactor
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. queryCache and m may be nil.
func New(
	index Index,
	applier *ingest.Applier,
	exec *executor.Executor,
	queryCache *cache.QueryCache,
	compactor Compactor,
	cfg Config,
	m *metrics.Metrics,
) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	return &Handler{
		index:     index,
		applier:   applier,
		executor:  exec,
		cache:     queryCache,
		compactor: compactor,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.PostDocument)
	mux.HandleFunc("DELETE /api/v1/documents", h.DeleteDocument)
	mux.HandleFunc("GET /api/v1/documents/properties", h.GetProperties)
	mux.HandleFunc("PUT /api/v1/documents/properties", h.PutProperties)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/flush", h.Flush)
	mux.HandleFunc("POST /api/v1/compact", h.Compact)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// PostDocument applies one ingest message. The op defaults to index.
func (h *Handler) PostDocument(w http.ResponseWriter, r *http.Request) {
	var msg ingest.Message
	if err := decodeBody(w, r, &msg); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.apply(w, r, msg)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, ingest.Message{Op: ingest.OpRemove, URI: r.URL.Query().Get("uri")})
}

func (h *Handler) PutProperties(w http.ResponseWriter, r *http.Request) {
	var props map[string]any
	if err := decodeBody(w, r, &props); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.apply(w, r, ingest.Message{Op: ingest.OpProperties, URI: r.URL.Query().Get("uri"), Properties: props})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, msg ingest.Message) {
	if err := h.applier.Apply(r.Context(), "http", msg); err != nil {
		h.writeFailure(w, err)
		return
	}
	if msg.Op == "" {
		msg.Op = ingest.OpIndex
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": string(ingest.StatusApplied),
		"op":     string(msg.Op),
		"uri":    strings.TrimSpace(msg.URI),
	})
}

func (h *Handler) GetProperties(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'uri' is required")
		return
	}
	props, ok, err := h.index.DocumentProperties(docid.URI(uri))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "document has no properties")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"uri": uri, "properties": props})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	query := r.URL.Query().Get("q")
	span.SetAttr("query", query)
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.cfg.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.cfg.MaxResults)
	}

	var opts search.Options
	if optStr := r.URL.Query().Get("options"); optStr != "" {
		parsed, err := search.ParseOptions(strings.Split(optStr, ",")...)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = parsed
	}

	compute := func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, query, opts, limit)
	}
	var (
		result   *executor.SearchResult
		cacheHit bool
		err      error
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Key{Query: query, Options: opts, Limit: limit}, compute)
	} else {
		result, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeFailure(w, err)
		return
	}

	resultType := "hits"
	if result.TotalHits == 0 {
		resultType = "empty"
	}
	span.SetAttr("cache_hit", cacheHit)
	h.metrics.ObserveQuery(resultType, cacheHit, start)
	log.Info("search completed",
		"query", query,
		"options", result.Options,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.index.Flush(); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *Handler) Compact(w http.ResponseWriter, r *http.Request) {
	if err := h.compactor.Compact(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "compacted"})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Stats()
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var verr *ingest.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
