package index

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Compact rebuilds the index without tombstoned handles, writes the result
// as a new snapshot, and only then swaps it in. A failed compaction leaves
// the index exactly as it was. Document numbers are not reused.
//
// Compact is blocking and proportional to the size of the index.
func (x *Index) Compact() error {
	next := newIndex(x.typ, x.analyzer, x.backend)
	next.maxDoc = x.maxDoc
	next.generation = x.generation + 1

	it := x.live.Iterator()
	for it.HasNext() {
		doc := x.docs[it.Next()]
		cp := *doc
		next.docs[cp.Number] = &cp
		next.byURL[cp.URL] = cp.Number
		next.live.Add(cp.Number)
		next.totalLen += int64(cp.Length)
		if p, ok := x.props[cp.Number]; ok {
			next.props[cp.Number] = p
		}
	}
	if x.typ == Inverted {
		for term, pl := range x.terms {
			next.terms[term] = slices.Clip(slices.Clone(pl))
		}
	}
	next.live.RunOptimize()

	if x.backend != nil {
		data, err := next.encodeSnapshot()
		if err != nil {
			return apperrors.Wrap("compact", apperrors.ErrCompactionFailed, "", err)
		}
		if err := x.backend.Replace(data); err != nil {
			return apperrors.Wrap("compact", apperrors.ErrCompactionFailed, "", err)
		}
	}

	reclaimed := x.Tombstones()
	x.docs = next.docs
	x.byURL = next.byURL
	x.terms = next.terms
	x.props = next.props
	x.live = next.live
	x.tombstones = roaring.New()
	x.totalLen = next.totalLen
	x.generation = next.generation
	x.pending = nil
	x.logger.Info("index compacted",
		"generation", x.generation,
		"documents", x.DocumentCount(),
		"reclaimed", reclaimed,
		"storage_bytes", x.StorageSize(),
	)
	return nil
}
