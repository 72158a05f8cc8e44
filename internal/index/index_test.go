package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// flakyBackend wraps a memory backend and fails on demand.
type flakyBackend struct {
	*storage.Memory
	failAppend  bool
	failReplace bool
}

func (f *flakyBackend) Append(records ...[]byte) error {
	if f.failAppend {
		return errDiskFull
	}
	return f.Memory.Append(records...)
}

func (f *flakyBackend) Replace(snapshot []byte) error {
	if f.failReplace {
		return errDiskFull
	}
	return f.Memory.Replace(snapshot)
}

func url(t testing.TB, s string) docid.DocumentURL {
	t.Helper()
	u, err := docid.Parse(s)
	require.NoError(t, err)
	return u
}

func newTestIndex(t *testing.T, backend storage.Backend, typ Type) *Index {
	t.Helper()
	x, err := New(backend, Options{Type: typ, Analysis: analysis.DefaultProperties()})
	require.NoError(t, err)
	return x
}

func docsFor(x *Index, term string) []string {
	var urls []string
	for _, p := range x.Postings(term) {
		doc, ok := x.Document(p.Doc)
		if ok {
			urls = append(urls, doc.URL)
		}
	}
	return urls
}

func mustIndex(t *testing.T, x *Index, u, text string) {
	t.Helper()
	_, err := x.IndexDocument(url(t, u), text)
	require.NoError(t, err)
}

func TestIndexAndRemove(t *testing.T) {
	for _, typ := range []Type{Inverted, Forward} {
		t.Run(string(typ), func(t *testing.T) {
			// Given three small documents
			x := newTestIndex(t, nil, typ)
			mustIndex(t, x, "doc://1", "foo bar")
			mustIndex(t, x, "doc://2", "baz bar")
			mustIndex(t, x, "doc://3", "baz foo")

			// Then postings are ordered by document number
			assert.ElementsMatch(t, []string{"doc://1", "doc://2"}, docsFor(x, "bar"))
			assert.Equal(t, []uint32{1, 2}, x.Postings("bar").DocumentNumbers())
			assert.Equal(t, 3, x.DocumentCount())
			assert.Equal(t, uint32(3), x.MaximumDocumentID())

			// When the first document is removed
			_, err := x.RemoveDocument(url(t, "doc://1"))
			require.NoError(t, err)

			// Then it disappears without compaction
			assert.Equal(t, []string{"doc://2"}, docsFor(x, "bar"))
			assert.Equal(t, 2, x.DocumentCount())
			assert.Equal(t, 1, x.Tombstones())
			assert.False(t, x.IsLive(1))
			assert.Equal(t, uint32(3), x.MaximumDocumentID())
		})
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	mustIndex(t, x, "doc://1", "foo")

	_, err := x.RemoveDocument(url(t, "doc://nope"))
	require.NoError(t, err)
	_, err = x.RemoveDocument(url(t, "doc://1"))
	require.NoError(t, err)
	_, err = x.RemoveDocument(url(t, "doc://1"))
	require.NoError(t, err)

	assert.Equal(t, 1, x.Tombstones())
	assert.Equal(t, 0, x.DocumentCount())
}

func TestReindexReplacesPostings(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	mustIndex(t, x, "doc://1", "alpha beta")
	mustIndex(t, x, "doc://1", "gamma")

	assert.Empty(t, x.Postings("alpha"))
	assert.Equal(t, []string{"doc://1"}, docsFor(x, "gamma"))
	assert.Equal(t, 1, x.DocumentCount())
	assert.Equal(t, uint32(1), x.MaximumDocumentID())
	assert.Equal(t, 1, x.TermCount())
}

func TestReaddAfterRemoveGetsNewNumber(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	mustIndex(t, x, "doc://1", "alpha")
	_, err := x.RemoveDocument(url(t, "doc://1"))
	require.NoError(t, err)
	mustIndex(t, x, "doc://1", "alpha")

	n, ok := x.Lookup("doc://1")
	require.True(t, ok)
	assert.Equal(t, uint32(2), n)
	assert.Equal(t, []uint32{2}, x.Postings("alpha").DocumentNumbers())
}

func TestUndoRestoresPriorState(t *testing.T) {
	backend, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	x := newTestIndex(t, backend, Inverted)
	mustIndex(t, x, "doc://1", "alpha beta")
	_, err = x.SetProperties(url(t, "doc://1"), map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, x.Flush())

	undo, err := x.IndexDocument(url(t, "doc://2"), "beta")
	require.NoError(t, err)
	undo()
	assert.Equal(t, 1, x.DocumentCount())
	assert.Equal(t, uint32(1), x.MaximumDocumentID())
	assert.Equal(t, []uint32{1}, x.Postings("beta").DocumentNumbers())
	assert.Zero(t, x.Pending())

	undo, err = x.IndexDocument(url(t, "doc://1"), "gamma")
	require.NoError(t, err)
	undo()
	assert.Equal(t, []uint32{1}, x.Postings("alpha").DocumentNumbers())
	assert.Empty(t, x.Postings("gamma"))

	undo, err = x.RemoveDocument(url(t, "doc://1"))
	require.NoError(t, err)
	undo()
	assert.True(t, x.IsLive(1))
	assert.Zero(t, x.Tombstones())
	props, ok := x.Properties(url(t, "doc://1"))
	require.True(t, ok)
	assert.Equal(t, Properties{"k": "v"}, props)

	undo, err = x.SetProperties(url(t, "doc://1"), map[string]any{"k": "other"})
	require.NoError(t, err)
	undo()
	props, _ = x.Properties(url(t, "doc://1"))
	assert.Equal(t, Properties{"k": "v"}, props)
	assert.Zero(t, x.Pending())
}

func TestProperties(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	mustIndex(t, x, "doc://1", "alpha")
	mustIndex(t, x, "doc://2", "beta")

	_, ok := x.Properties(url(t, "doc://1"))
	assert.False(t, ok, "never set")

	_, err := x.SetProperties(url(t, "doc://1"), map[string]any{})
	require.NoError(t, err)
	props, ok := x.Properties(url(t, "doc://1"))
	require.True(t, ok, "set empty")
	assert.Empty(t, props)

	_, err = x.SetProperties(url(t, "doc://2"), map[string]any{"n": 3, "f": float32(1.5), "ok": true})
	require.NoError(t, err)
	props, ok = x.Properties(url(t, "doc://2"))
	require.True(t, ok)
	assert.Equal(t, Properties{"n": int64(3), "f": 1.5, "ok": true}, props)

	_, err = x.SetProperties(url(t, "doc://2"), map[string]any{"bad": []int{1}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = x.SetProperties(url(t, "doc://9"), map[string]any{"k": "v"})
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	_, err = x.RemoveDocument(url(t, "doc://2"))
	require.NoError(t, err)
	_, ok = x.Properties(url(t, "doc://2"))
	assert.False(t, ok, "cleared on removal")
}

func TestFlushIsIdempotent(t *testing.T) {
	backend, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	x := newTestIndex(t, backend, Inverted)
	mustIndex(t, x, "doc://1", "foo bar")

	require.NoError(t, x.Flush())
	first := backend.Bytes()
	require.NoError(t, x.Flush())
	assert.Equal(t, first, backend.Bytes())
}

func TestFlushFailureKeepsPending(t *testing.T) {
	mem, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	backend := &flakyBackend{Memory: mem, failAppend: true}
	x := newTestIndex(t, backend, Inverted)
	mustIndex(t, x, "doc://1", "foo")

	err = x.Flush()
	assert.ErrorIs(t, err, apperrors.ErrFlushFailed)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 1, x.Pending())

	backend.failAppend = false
	require.NoError(t, x.Flush())
	assert.Zero(t, x.Pending())
}

func TestOpenReplaysLog(t *testing.T) {
	for _, codec := range []storage.Codec{storage.CodecNone, storage.CodecZstd, storage.CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			backend, err := storage.NewMemory(codec)
			require.NoError(t, err)
			props := analysis.DefaultProperties()
			props.Stemming = analysis.StemLight
			x, err := New(backend, Options{Type: Inverted, Analysis: props})
			require.NoError(t, err)

			mustIndex(t, x, "doc://1", "foo bar")
			mustIndex(t, x, "doc://2", "baz bar")
			mustIndex(t, x, "doc://3", "baz foo")
			_, err = x.SetProperties(url(t, "doc://3"), map[string]any{"rank": 7, "title": "third"})
			require.NoError(t, err)
			_, err = x.RemoveDocument(url(t, "doc://1"))
			require.NoError(t, err)
			require.NoError(t, x.Flush())

			reopened, err := Open(backend)
			require.NoError(t, err)
			assert.Equal(t, x.DocumentCount(), reopened.DocumentCount())
			assert.Equal(t, x.MaximumDocumentID(), reopened.MaximumDocumentID())
			assert.Equal(t, x.Tombstones(), reopened.Tombstones())
			assert.Equal(t, docsFor(x, "bar"), docsFor(reopened, "bar"))
			assert.Equal(t, docsFor(x, "foo"), docsFor(reopened, "foo"))
			assert.Equal(t, analysis.StemLight, reopened.Analyzer().Properties().Stemming)
			p, ok := reopened.Properties(url(t, "doc://3"))
			require.True(t, ok)
			assert.Equal(t, Properties{"rank": int64(7), "title": "third"}, p)
		})
	}
}

func TestOpenUnflushedMutationsAreLost(t *testing.T) {
	backend, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	x := newTestIndex(t, backend, Inverted)
	mustIndex(t, x, "doc://1", "foo")
	require.NoError(t, x.Flush())
	mustIndex(t, x, "doc://2", "foo")

	reopened, err := Open(backend)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.DocumentCount())
}

func TestOpenRejectsEmptyOrBadState(t *testing.T) {
	empty, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	_, err = Open(empty)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)

	bad, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	require.NoError(t, bad.Replace([]byte(`{"version":1,"type":"inverted","analysis":{}}`)))
	require.NoError(t, bad.Append([]byte(`{"op":"remove","doc":42}`)))
	_, err = Open(bad)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)

	garbled, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	require.NoError(t, garbled.Replace([]byte(`not json`)))
	_, err = Open(garbled)
	assert.ErrorIs(t, err, apperrors.ErrOpenFailed)
}

func TestCompactPreservesSearchableContent(t *testing.T) {
	backend, err := storage.NewMemory(storage.CodecZstd)
	require.NoError(t, err)
	x := newTestIndex(t, backend, Inverted)
	for i := 1; i <= 20; i++ {
		mustIndex(t, x, fmt.Sprintf("doc://%d", i), fmt.Sprintf("common term%d", i%4))
	}
	for i := 1; i <= 20; i += 3 {
		_, err := x.RemoveDocument(url(t, fmt.Sprintf("doc://%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, x.Flush())
	before := docsFor(x, "common")
	beforeSize := backend.Size()

	require.NoError(t, x.Compact())

	assert.Equal(t, before, docsFor(x, "common"))
	assert.Zero(t, x.Tombstones())
	assert.Equal(t, uint64(1), x.Generation())
	assert.Equal(t, uint32(20), x.MaximumDocumentID())
	assert.Less(t, backend.Size(), beforeSize)

	reopened, err := Open(backend)
	require.NoError(t, err)
	assert.Equal(t, before, docsFor(reopened, "common"))
	assert.Equal(t, uint32(20), reopened.MaximumDocumentID())
	assert.Equal(t, uint64(1), reopened.Generation())

	mustIndex(t, reopened, "doc://new", "common")
	n, _ := reopened.Lookup("doc://new")
	assert.Equal(t, uint32(21), n, "numbers are not reused after compaction")
}

func TestCompactFailureLeavesIndexUntouched(t *testing.T) {
	mem, err := storage.NewMemory(storage.CodecNone)
	require.NoError(t, err)
	backend := &flakyBackend{Memory: mem}
	x := newTestIndex(t, backend, Inverted)
	mustIndex(t, x, "doc://1", "foo")
	mustIndex(t, x, "doc://2", "foo")
	_, err = x.RemoveDocument(url(t, "doc://1"))
	require.NoError(t, err)

	backend.failReplace = true
	err = x.Compact()
	assert.ErrorIs(t, err, apperrors.ErrCompactionFailed)
	assert.Equal(t, 1, x.Tombstones())
	assert.Equal(t, uint64(0), x.Generation())
	assert.Equal(t, 3, x.Pending())
	assert.Equal(t, []string{"doc://2"}, docsFor(x, "foo"))
}

func TestTermsWithPrefix(t *testing.T) {
	for _, typ := range []Type{Inverted, Forward} {
		x := newTestIndex(t, nil, typ)
		mustIndex(t, x, "doc://1", "search searcher seal")
		mustIndex(t, x, "doc://2", "searching other")

		assert.Equal(t, []string{"search", "searcher", "searching"}, x.TermsWithPrefix("sear"), "type %s", typ)
	}
}

func TestInvalidURL(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	_, err := x.IndexDocument(docid.DocumentURL{}, "foo")
	assert.ErrorIs(t, err, apperrors.ErrIndexingFailed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDocumentID)
	_, err = x.RemoveDocument(docid.DocumentURL{})
	assert.ErrorIs(t, err, apperrors.ErrRemovalFailed)
}

func TestStats(t *testing.T) {
	x := newTestIndex(t, nil, Inverted)
	assert.Equal(t, Stats{}, x.Stats())
	mustIndex(t, x, "doc://1", "one two three four")
	mustIndex(t, x, "doc://2", "one two")
	assert.Equal(t, Stats{Documents: 2, AvgDocLength: 3}, x.Stats())
}

func BenchmarkIndexDocument(b *testing.B) {
	x, err := New(nil, Options{Type: Inverted, Analysis: analysis.DefaultProperties()})
	require.NoError(b, err)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		u := url(b, fmt.Sprintf("doc://%d", i))
		if _, err := x.IndexDocument(u, "this is a benchmark document with several terms for testing the indexing performance"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPostings(b *testing.B) {
	x, err := New(nil, Options{Type: Inverted, Analysis: analysis.DefaultProperties()})
	require.NoError(b, err)
	for i := 0; i < 10000; i++ {
		if _, err := x.IndexDocument(url(b, fmt.Sprintf("doc://%d", i)), "search engine with distributed indexing"); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = x.Postings("search")
	}
}
