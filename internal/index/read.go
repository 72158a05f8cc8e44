package index

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
)

// Stats summarizes the live documents for ranking.
type Stats struct {
	Documents    int
	AvgDocLength float64
}

func (x *Index) Type() Type { return x.typ }

func (x *Index) Analyzer() *analysis.Analyzer { return x.analyzer }

// Generation increases with every completed compaction.
func (x *Index) Generation() uint64 { return x.generation }

// DocumentCount is the number of live documents.
func (x *Index) DocumentCount() int { return int(x.live.GetCardinality()) }

// MaximumDocumentID is the highest document number ever assigned.
func (x *Index) MaximumDocumentID() uint32 { return x.maxDoc }

// Tombstones is the number of removed documents not yet compacted away.
func (x *Index) Tombstones() int { return int(x.tombstones.GetCardinality()) }

// Pending is the number of log records not yet flushed.
func (x *Index) Pending() int { return len(x.pending) }

// StorageSize reports the bytes held by the backend, or 0 without one.
func (x *Index) StorageSize() int64 {
	if x.backend == nil {
		return 0
	}
	return x.backend.Size()
}

func (x *Index) Stats() Stats {
	n := x.DocumentCount()
	s := Stats{Documents: n}
	if n > 0 {
		s.AvgDocLength = float64(x.totalLen) / float64(n)
	}
	return s
}

// IsLive reports whether doc names a document that is neither tombstoned
// nor reclaimed.
func (x *Index) IsLive(doc uint32) bool { return x.live.Contains(doc) }

func (x *Index) liveDoc(doc uint32) (*Document, bool) {
	if !x.live.Contains(doc) {
		return nil, false
	}
	d, ok := x.docs[doc]
	return d, ok
}

// Document returns a live document. Callers must not modify it.
func (x *Index) Document(doc uint32) (*Document, bool) {
	return x.liveDoc(doc)
}

// Lookup returns the number of the live document stored under url.
func (x *Index) Lookup(url string) (uint32, bool) {
	n, ok := x.byURL[url]
	return n, ok
}

// Postings returns the posting list of term. For an inverted index the list
// is shared with the index and must not be modified or retained across
// mutations; a forward index builds it by scanning the live documents.
func (x *Index) Postings(term string) PostingList {
	if x.typ == Inverted {
		return x.terms[term]
	}
	var pl PostingList
	it := x.live.Iterator()
	for it.HasNext() {
		n := it.Next()
		if positions, ok := x.docs[n].Terms[term]; ok {
			pl = append(pl, Posting{Doc: n, Positions: positions})
		}
	}
	return pl
}

// DocFreq is the number of live documents containing term.
func (x *Index) DocFreq(term string) int {
	return len(x.Postings(term))
}

// TermsWithPrefix lists, in order, the dictionary terms starting with prefix.
func (x *Index) TermsWithPrefix(prefix string) []string {
	var out []string
	if x.typ == Inverted {
		for term := range x.terms {
			if strings.HasPrefix(term, prefix) {
				out = append(out, term)
			}
		}
	} else {
		seen := make(map[string]struct{})
		it := x.live.Iterator()
		for it.HasNext() {
			for term := range x.docs[it.Next()].Terms {
				if _, dup := seen[term]; !dup && strings.HasPrefix(term, prefix) {
					seen[term] = struct{}{}
					out = append(out, term)
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

// TermCount is the number of distinct terms over the live documents.
func (x *Index) TermCount() int {
	if x.typ == Inverted {
		return len(x.terms)
	}
	return len(x.TermsWithPrefix(""))
}
