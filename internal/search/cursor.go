// Package search runs queries against an index as a resumable cursor. Each
// call to Next scans forward from where the previous call stopped and
// returns the next batch of hits, bounded by a hit count and a time budget.
package search

import (
	"log/slog"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/ranker"
)

const (
	// deadlineEvery is how many scan steps pass between clock checks.
	deadlineEvery = 64
	// quantum bounds the scan steps of one Next call when there is no time
	// budget.
	quantum = 1024
	// maxPrefixTerms caps the dictionary expansion of one prefix clause.
	maxPrefixTerms = 1024
)

type State int

const (
	NotStarted State = iota
	InProgress
	Exhausted
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Exhausted:
		return "exhausted"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Hit is a matching live document.
type Hit = ranker.ScoredDoc

// Source is the read side of an index that a cursor scans.
type Source interface {
	Analyzer() *analysis.Analyzer
	Postings(term string) index.PostingList
	TermsWithPrefix(prefix string) []string
	Document(doc uint32) (*index.Document, bool)
	Stats() index.Stats
}

// Cursor is a single forward pass over the matches of one query. It is not
// safe for concurrent use, and the source must not be mutated during Next.
type Cursor struct {
	src         Source
	plan        *parser.QueryPlan
	opts        Options
	hitsAtATime int
	maxTime     time.Duration
	state       State
	next        uint64
	now         func() time.Time
	logger      *slog.Logger
}

// NewCursor parses query with the source's analyzer. A hitsAtATime of zero
// or less yields a cursor that is already exhausted.
func NewCursor(src Source, query string, opts Options, hitsAtATime int, maxTime time.Duration) *Cursor {
	var plan *parser.QueryPlan
	if opts.Has(FindSimilar) {
		plan = parser.ParseSimilar(query, src.Analyzer())
	} else {
		plan = parser.Parse(query, src.Analyzer(), parser.Options{SpaceMeansOR: opts.Has(SpaceMeansOR)})
	}
	if maxTime < 0 {
		maxTime = 0
	}
	c := &Cursor{
		src:         src,
		plan:        plan,
		opts:        opts,
		hitsAtATime: hitsAtATime,
		maxTime:     maxTime,
		next:        1,
		now:         time.Now,
		logger:      slog.Default().With("component", "search"),
	}
	if hitsAtATime <= 0 {
		c.state = Exhausted
	}
	return c
}

func (c *Cursor) State() State { return c.state }

func (c *Cursor) IsInProgress() bool {
	return c.state == NotStarted || c.state == InProgress
}

func (c *Cursor) Plan() *parser.QueryPlan { return c.plan }

// Stop ends the search. Later calls to Next return nil.
func (c *Cursor) Stop() {
	if c.IsInProgress() {
		c.state = Stopped
	}
}

// Next returns the next batch of at most hitsAtATime hits ordered by
// descending score. The batch may be short or empty when the time budget
// runs out first. Once the scan is exhausted, the final batch is returned
// if it holds any hits, and every later call returns nil.
func (c *Cursor) Next() []Hit {
	if !c.IsInProgress() {
		return nil
	}
	c.state = InProgress

	stats := c.src.Stats()
	params := ranker.RankParams{TotalDocs: stats.Documents, AvgDocLength: stats.AvgDocLength}
	root, exclude, ok := c.compile(params)
	if !ok {
		c.state = Exhausted
		return nil
	}
	ranked := !c.opts.Has(Unranked)

	var deadline time.Time
	if c.maxTime > 0 {
		deadline = c.now().Add(c.maxTime)
	}

	hits := make([]Hit, 0, min(c.hitsAtATime, 64))
	exhausted := false
	for steps := 1; len(hits) < c.hitsAtATime; steps++ {
		if c.maxTime == 0 && steps > quantum {
			break
		}
		if c.maxTime > 0 && steps%deadlineEvery == 0 && c.now().After(deadline) {
			break
		}
		if c.next > math.MaxUint32 {
			exhausted = true
			break
		}
		doc, ok := root.seek(uint32(c.next))
		if !ok {
			exhausted = true
			break
		}
		c.next = uint64(doc) + 1
		if excluded(exclude, doc) {
			continue
		}
		d, live := c.src.Document(doc)
		if !live {
			continue
		}
		hit := Hit{Doc: doc, URL: d.URL}
		if ranked {
			hit.Score = ranker.Round(root.score(doc, func(tf int) float64 {
				return params.TFNorm(tf, d.Length)
			}))
		}
		hits = append(hits, hit)
	}
	ranker.Sort(hits)

	if exhausted {
		c.state = Exhausted
		c.logger.Debug("search exhausted", "query", c.plan.RawQuery, "last_batch", len(hits))
		if len(hits) == 0 {
			return nil
		}
	}
	return hits
}

// compile resolves the plan against the current postings. ok is false when
// nothing can match.
func (c *Cursor) compile(params ranker.RankParams) (docIter, []docIter, bool) {
	if c.plan.Empty() {
		return nil, nil, false
	}

	clauses := make([]docIter, 0, len(c.plan.Clauses))
	for _, cl := range c.plan.Clauses {
		it := c.clauseIter(cl, params)
		if it == nil {
			if c.plan.Type == parser.QueryAND {
				return nil, nil, false
			}
			continue
		}
		clauses = append(clauses, it)
	}
	if len(clauses) == 0 {
		return nil, nil, false
	}

	var exclude []docIter
	for _, cl := range c.plan.Exclude {
		if it := c.clauseIter(cl, params); it != nil {
			exclude = append(exclude, it)
		}
	}

	if len(clauses) == 1 {
		return clauses[0], exclude, true
	}
	if c.plan.Type == parser.QueryOR {
		return newUnion(clauses), exclude, true
	}
	return &andIter{children: clauses}, exclude, true
}

func (c *Cursor) clauseIter(cl parser.Clause, params ranker.RankParams) docIter {
	term := func(t string) *termIter {
		pl := c.src.Postings(t)
		if len(pl) == 0 {
			return nil
		}
		return &termIter{pl: pl, weight: cl.Weight * params.IDF(len(pl))}
	}

	switch {
	case cl.Prefix:
		expanded := c.src.TermsWithPrefix(cl.Terms[0])
		if len(expanded) > maxPrefixTerms {
			c.logger.Warn("prefix expansion truncated",
				"prefix", cl.Terms[0],
				"terms", len(expanded),
				"limit", maxPrefixTerms,
			)
			expanded = expanded[:maxPrefixTerms]
		}
		var children []docIter
		for _, t := range expanded {
			if it := term(t); it != nil {
				children = append(children, it)
			}
		}
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return newUnion(children)

	case cl.IsPhrase():
		a := &andIter{}
		for _, t := range cl.Terms {
			it := term(t)
			if it == nil {
				return nil
			}
			a.children = append(a.children, it)
			a.terms = append(a.terms, it)
		}
		return a

	default:
		if it := term(cl.Terms[0]); it != nil {
			return it
		}
		return nil
	}
}

func excluded(exclude []docIter, doc uint32) bool {
	for _, ex := range exclude {
		if d, ok := ex.seek(doc); ok && d == doc {
			return true
		}
	}
	return false
}
