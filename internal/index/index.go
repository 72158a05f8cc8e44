// Package index is the inverted index core: the document registry, the term
// dictionary with its posting lists, per-document properties, and the
// mutation log written through a storage backend.
//
// An Index has a single owner. It does no locking; callers serialize all
// mutations and reads.
package index

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Type selects the index structure.
type Type string

const (
	// Inverted keeps a posting list per term.
	Inverted Type = "inverted"
	// Forward keeps only per-document term vectors; term lookups scan them.
	Forward Type = "forward"
)

func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(s)) {
	case "", Inverted:
		return Inverted, nil
	case Forward:
		return Forward, nil
	default:
		return "", fmt.Errorf("unknown index type %q: %w", s, apperrors.ErrInvalidInput)
	}
}

type Options struct {
	Type     Type
	Analysis analysis.Properties
}

// Undo reverts the mutation that returned it. It is only valid until the
// next mutation or flush.
type Undo func()

func noUndo() {}

type Index struct {
	typ        Type
	analyzer   *analysis.Analyzer
	backend    storage.Backend
	docs       map[uint32]*Document
	byURL      map[string]uint32
	terms      map[string]PostingList
	props      map[uint32]Properties
	live       *roaring.Bitmap
	tombstones *roaring.Bitmap
	totalLen   int64
	maxDoc     uint32
	generation uint64
	pending    [][]byte
	logger     *slog.Logger
}

func newIndex(typ Type, analyzer *analysis.Analyzer, backend storage.Backend) *Index {
	return &Index{
		typ:        typ,
		analyzer:   analyzer,
		backend:    backend,
		docs:       make(map[uint32]*Document),
		byURL:      make(map[string]uint32),
		terms:      make(map[string]PostingList),
		props:      make(map[uint32]Properties),
		live:       roaring.New(),
		tombstones: roaring.New(),
		logger:     slog.Default().With("component", "index"),
	}
}

// New creates an empty index. With a non-nil backend the initial snapshot is
// written immediately; a nil backend gives a purely in-memory index.
func New(backend storage.Backend, opts Options) (*Index, error) {
	typ, err := ParseType(string(opts.Type))
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.New(opts.Analysis)
	if err != nil {
		return nil, fmt.Errorf("configuring analyzer: %w", err)
	}
	x := newIndex(typ, analyzer, backend)
	if backend != nil {
		data, err := x.encodeSnapshot()
		if err != nil {
			return nil, err
		}
		if err := backend.Replace(data); err != nil {
			return nil, fmt.Errorf("writing initial snapshot: %w", err)
		}
	}
	return x, nil
}

// Open rebuilds an index from the snapshot and log held by backend. The
// index type and analysis properties come from the snapshot.
func Open(backend storage.Backend) (*Index, error) {
	data, records, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %w", apperrors.ErrOpenFailed, backend.Name(), err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s holds no index state", apperrors.ErrOpenFailed, backend.Name())
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.New(snap.Analysis)
	if err != nil {
		return nil, fmt.Errorf("%w: stored analysis properties: %w", apperrors.ErrOpenFailed, err)
	}

	x := newIndex(snap.Type, analyzer, backend)
	x.maxDoc = snap.MaxDoc
	x.generation = snap.Generation
	for _, sd := range snap.Documents {
		x.link(&Document{Number: sd.Number, URL: sd.URL, Length: sd.Length, Terms: sd.Terms})
		if sd.Props != nil {
			props, err := NormalizeProperties(*sd.Props)
			if err != nil {
				return nil, fmt.Errorf("%w: properties of doc %d: %w", apperrors.ErrOpenFailed, sd.Number, err)
			}
			x.props[sd.Number] = props
		}
		if sd.Number > x.maxDoc {
			x.maxDoc = sd.Number
		}
	}
	for i, raw := range records {
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding log record %d: %w", apperrors.ErrOpenFailed, i, err)
		}
		if err := x.replay(r); err != nil {
			return nil, fmt.Errorf("%w: replaying log record %d: %w", apperrors.ErrOpenFailed, i, err)
		}
	}
	x.logger.Debug("index opened",
		"backend", backend.Name(),
		"documents", x.DocumentCount(),
		"tombstones", x.Tombstones(),
		"log_records", len(records),
	)
	return x, nil
}

// IndexDocument analyzes text and stores it as the content of url,
// replacing any previous content. A live document keeps its number;
// otherwise the next number is assigned.
func (x *Index) IndexDocument(url docid.DocumentURL, text string) (Undo, error) {
	if url.IsZero() {
		return noUndo, apperrors.Wrap("index", apperrors.ErrIndexingFailed, "", apperrors.ErrInvalidDocumentID)
	}
	key := url.String()

	terms := make(map[string][]int)
	length := 0
	for tok := range x.analyzer.Analyze(text) {
		terms[tok.Term] = append(terms[tok.Term], tok.Position)
		length++
	}

	prevMax := x.maxDoc
	var prev *Document
	num, exists := x.byURL[key]
	if exists {
		prev = x.docs[num]
		x.unlink(prev)
	} else {
		if x.maxDoc == math.MaxUint32 {
			return noUndo, apperrors.Wrap("index", apperrors.ErrIndexingFailed, key, fmt.Errorf("document numbers exhausted"))
		}
		x.maxDoc++
		num = x.maxDoc
	}
	doc := &Document{Number: num, URL: key, Length: length, Terms: terms}
	x.link(doc)
	mark := x.log(record{Op: opIndex, Doc: num, URL: key, Length: length, Terms: terms})

	return func() {
		x.unlink(doc)
		delete(x.docs, num)
		if prev != nil {
			x.link(prev)
		}
		x.maxDoc = prevMax
		x.truncateLog(mark)
	}, nil
}

// RemoveDocument removes the postings and properties of url and tombstones
// its handle. Removing an unknown or already removed document succeeds and
// changes nothing.
func (x *Index) RemoveDocument(url docid.DocumentURL) (Undo, error) {
	if url.IsZero() {
		return noUndo, apperrors.Wrap("remove", apperrors.ErrRemovalFailed, "", apperrors.ErrInvalidDocumentID)
	}
	num, ok := x.byURL[url.String()]
	if !ok {
		return noUndo, nil
	}
	doc := x.docs[num]
	prevProps, hadProps := x.props[num]
	x.tombstone(doc)
	mark := x.log(record{Op: opRemove, Doc: num})

	return func() {
		x.untombstone(doc)
		if hadProps {
			x.props[num] = prevProps
		}
		x.truncateLog(mark)
	}, nil
}

// SetProperties replaces the property set of an indexed document. A nil map
// clears it.
func (x *Index) SetProperties(url docid.DocumentURL, props map[string]any) (Undo, error) {
	key := url.String()
	num, ok := x.byURL[key]
	if !ok {
		return noUndo, apperrors.Wrap("properties", apperrors.ErrIndexingFailed, key, apperrors.ErrDocumentNotFound)
	}
	normalized, err := NormalizeProperties(props)
	if err != nil {
		return noUndo, apperrors.Wrap("properties", apperrors.ErrIndexingFailed, key, err)
	}
	prevProps, hadProps := x.props[num]

	r := record{Op: opProps, Doc: num}
	if props == nil {
		delete(x.props, num)
	} else {
		x.props[num] = normalized
		stored := normalized.clone()
		r.Props = &stored
	}
	mark := x.log(r)

	return func() {
		if hadProps {
			x.props[num] = prevProps
		} else {
			delete(x.props, num)
		}
		x.truncateLog(mark)
	}, nil
}

// Properties returns a copy of the property set of url. ok is false when
// the document has no properties, including when none were ever set.
func (x *Index) Properties(url docid.DocumentURL) (Properties, bool) {
	num, ok := x.byURL[url.String()]
	if !ok {
		return nil, false
	}
	p, ok := x.props[num]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// Flush appends pending log records to the backend. It is a no-op without a
// backend or without pending records. On failure the records stay pending.
func (x *Index) Flush() error {
	if x.backend == nil || len(x.pending) == 0 {
		return nil
	}
	if err := x.backend.Append(x.pending...); err != nil {
		return apperrors.Wrap("flush", apperrors.ErrFlushFailed, "", err)
	}
	x.logger.Debug("index flushed", "records", len(x.pending))
	x.pending = nil
	return nil
}

// Close flushes and closes the backend.
func (x *Index) Close() error {
	flushErr := x.Flush()
	if x.backend == nil {
		return flushErr
	}
	if err := x.backend.Close(); err != nil {
		if flushErr != nil {
			return fmt.Errorf("%w; closing backend: %w", flushErr, err)
		}
		return fmt.Errorf("closing backend: %w", err)
	}
	return flushErr
}

func (x *Index) log(r record) int {
	mark := len(x.pending)
	if x.backend != nil {
		x.pending = append(x.pending, encodeRecord(r))
	}
	return mark
}

func (x *Index) truncateLog(mark int) {
	if mark < len(x.pending) {
		x.pending = x.pending[:mark]
	}
}

// link registers doc as live and posts its terms.
func (x *Index) link(doc *Document) {
	x.docs[doc.Number] = doc
	x.byURL[doc.URL] = doc.Number
	x.live.Add(doc.Number)
	x.totalLen += int64(doc.Length)
	if x.typ != Inverted {
		return
	}
	for term, positions := range doc.Terms {
		x.terms[term] = x.terms[term].upsert(Posting{Doc: doc.Number, Positions: positions})
	}
}

// unlink withdraws a live doc's postings and registry entry. The caller
// decides whether the handle is deleted or tombstoned.
func (x *Index) unlink(doc *Document) {
	delete(x.byURL, doc.URL)
	x.live.Remove(doc.Number)
	x.totalLen -= int64(doc.Length)
	if x.typ != Inverted {
		return
	}
	for term := range doc.Terms {
		pl := x.terms[term].remove(doc.Number)
		if len(pl) == 0 {
			delete(x.terms, term)
		} else {
			x.terms[term] = pl
		}
	}
}

func (x *Index) tombstone(doc *Document) {
	x.unlink(doc)
	doc.Tombstoned = true
	x.tombstones.Add(doc.Number)
	delete(x.props, doc.Number)
}

func (x *Index) untombstone(doc *Document) {
	x.tombstones.Remove(doc.Number)
	doc.Tombstoned = false
	x.link(doc)
}
