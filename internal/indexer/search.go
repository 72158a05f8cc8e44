package indexer

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
)

// Hit is one search result resolved back to its object identifier.
type Hit struct {
	URL    docid.DocumentURL
	Object docid.ObjectID
	Score  float64
	// Number is the internal document number, stable until the document
	// is removed.
	Number uint32
}

// Search is an in-progress query. Each Next call holds the indexer lock
// while it scans, so mutations interleave between batches.
type Search struct {
	x      *Indexer
	cursor *search.Cursor
}

// MakeSearch starts a query. hitsAtATime <= 0 returns a search that is
// already finished.
func (x *Indexer) MakeSearch(query string, opts search.Options, hitsAtATime int, maxTime time.Duration) (*Search, error) {
	if err := x.lock(); err != nil {
		return nil, err
	}
	defer x.mu.Unlock()

	if x.opts.Autoflush == AutoflushBeforeEachSearch && x.idx.Pending() > 0 {
		start := time.Now()
		err := x.idx.Flush()
		x.opts.Metrics.ObserveOp("flush", start, err)
		if err != nil {
			return nil, err
		}
	}
	return &Search{x: x, cursor: search.NewCursor(x.idx, query, opts, hitsAtATime, maxTime)}, nil
}

// Next returns the next batch of hits, or nil once the search is over.
// Hits whose identifiers the resolver no longer knows are dropped, so a
// batch may be empty while the search is still in progress.
func (s *Search) Next() []Hit {
	x := s.x
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		s.cursor.Stop()
		return nil
	}

	raw := s.cursor.Next()
	if raw == nil {
		return nil
	}
	x.opts.Metrics.ObserveBatch(len(raw))
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		url, err := docid.Parse(h.URL)
		if err != nil {
			x.logger.Warn("dropping hit with invalid url", "url", h.URL, "error", err)
			continue
		}
		var obj docid.ObjectID = docid.URI(url.String())
		if x.opts.Resolver != nil {
			resolved, ok := x.opts.Resolver.Resolve(url)
			if !ok {
				x.logger.Warn("dropping unresolvable hit", "url", url.String())
				continue
			}
			obj = resolved
		}
		hits = append(hits, Hit{URL: url, Object: obj, Score: h.Score, Number: h.Doc})
	}
	return hits
}

func (s *Search) Stop() {
	s.x.mu.Lock()
	defer s.x.mu.Unlock()
	s.cursor.Stop()
}

func (s *Search) IsInProgress() bool {
	s.x.mu.Lock()
	defer s.x.mu.Unlock()
	return s.cursor.IsInProgress()
}

func (s *Search) State() search.State {
	s.x.mu.Lock()
	defer s.x.mu.Unlock()
	return s.cursor.State()
}

// BatchFunc receives each batch of a callback search. hasMore reports
// whether further batches follow; setting *stop ends the search early.
type BatchFunc func(hits []Hit, hasMore bool, stop *bool)

// Search runs query to completion, calling onBatch at least once. With
// hitsAtATime <= 0 it is called exactly once with no hits.
func (x *Indexer) Search(query string, opts search.Options, hitsAtATime int, maxTime time.Duration, onBatch BatchFunc) error {
	s, err := x.MakeSearch(query, opts, hitsAtATime, maxTime)
	if err != nil {
		return err
	}
	for {
		hits := s.Next()
		more := s.IsInProgress()
		stop := false
		onBatch(hits, more, &stop)
		if stop {
			s.Stop()
			return nil
		}
		if !more {
			return nil
		}
	}
}
