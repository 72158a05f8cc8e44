// Package executor runs a query to completion against the indexer and keeps
// the best results across all batches.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/merger"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/tracing"
)

type Result struct {
	URI   string  `json:"uri"`
	Score float64 `json:"score"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Options   string   `json:"options"`
	TotalHits int      `json:"total_hits"`
	Batches   int      `json:"batches"`
	Results   []Result `json:"results"`
}

// Searcher is the callback search of the indexer facade.
type Searcher interface {
	Search(query string, opts search.Options, hitsAtATime int, maxTime time.Duration, onBatch indexer.BatchFunc) error
}

type Executor struct {
	index       Searcher
	hitsAtATime int
	maxTime     time.Duration
	logger      *slog.Logger
}

// New creates an Executor. Non-positive batch settings fall back to the
// search defaults.
func New(index Searcher, hitsAtATime int, maxTime time.Duration) *Executor {
	if hitsAtATime <= 0 {
		hitsAtATime = search.DefaultHitsAtATime
	}
	if maxTime <= 0 {
		maxTime = search.DefaultMaximumTime
	}
	return &Executor{
		index:       index,
		hitsAtATime: hitsAtATime,
		maxTime:     maxTime,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Execute consumes every batch of query and returns the limit best hits.
// A cancelled ctx stops the search at the next batch boundary and fails
// with ErrTimeout.
func (e *Executor) Execute(ctx context.Context, query string, opts search.Options, limit int) (*SearchResult, error) {
	ctx, span := tracing.Start(ctx, "execute")
	defer span.End()

	top := merger.NewTopK(limit)
	result := &SearchResult{Query: query, Options: opts.String()}

	err := e.index.Search(query, opts, e.hitsAtATime, e.maxTime, func(hits []indexer.Hit, hasMore bool, stop *bool) {
		result.Batches++
		result.TotalHits += len(hits)
		for _, h := range hits {
			top.Add(ranker.ScoredDoc{Doc: h.Number, URL: h.Object.URI(), Score: h.Score})
		}
		if hasMore && ctx.Err() != nil {
			*stop = true
		}
	})
	span.SetAttr("batches", result.Batches)
	span.SetAttr("total_hits", result.TotalHits)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search %q: %w: %w", query, apperrors.ErrTimeout, err)
	}

	docs := top.Result()
	result.Results = make([]Result, len(docs))
	for i, d := range docs {
		result.Results[i] = Result{URI: d.URL, Score: d.Score}
	}
	e.logger.Debug("query executed",
		"query", query,
		"options", result.Options,
		"total_hits", result.TotalHits,
		"batches", result.Batches,
		"returned", len(result.Results),
	)
	return result, nil
}
