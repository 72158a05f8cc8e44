package search

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/docid"
)

func newIndex(t testing.TB, typ index.Type, docs map[string]string) *index.Index {
	t.Helper()
	x, err := index.New(nil, index.Options{Type: typ, Analysis: analysis.DefaultProperties()})
	require.NoError(t, err)
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		indexDoc(t, x, k, docs[k])
	}
	return x
}

func indexDoc(t testing.TB, x *index.Index, u, text string) {
	t.Helper()
	url, err := docid.Parse(u)
	require.NoError(t, err)
	_, err = x.IndexDocument(url, text)
	require.NoError(t, err)
}

func removeDoc(t testing.TB, x *index.Index, u string) {
	t.Helper()
	url, err := docid.Parse(u)
	require.NoError(t, err)
	_, err = x.RemoveDocument(url)
	require.NoError(t, err)
}

// drain runs a cursor to the end and returns the hit URLs in batch order.
func drain(t testing.TB, c *Cursor) []string {
	t.Helper()
	var urls []string
	for i := 0; c.IsInProgress(); i++ {
		require.Less(t, i, 100000, "cursor never finished")
		for _, h := range c.Next() {
			urls = append(urls, h.URL)
		}
	}
	return urls
}

func search(t testing.TB, x *index.Index, query string, opts Options) []string {
	t.Helper()
	urls := drain(t, NewCursor(x, query, opts, DefaultHitsAtATime, DefaultMaximumTime))
	sort.Strings(urls)
	return urls
}

var fooBarBaz = map[string]string{
	"doc://1": "foo bar",
	"doc://2": "baz bar",
	"doc://3": "baz foo",
}

func TestFooBarBazScenario(t *testing.T) {
	for _, typ := range []index.Type{index.Inverted, index.Forward} {
		t.Run(string(typ), func(t *testing.T) {
			x := newIndex(t, typ, fooBarBaz)
			assert.Equal(t, []string{"doc://1", "doc://2"}, search(t, x, "bar", Ranked))

			removeDoc(t, x, "doc://1")
			assert.Equal(t, []string{"doc://2"}, search(t, x, "bar", Ranked))

			require.NoError(t, x.Compact())
			assert.Equal(t, []string{"doc://2"}, search(t, x, "bar", Ranked))
			assert.Equal(t, []string{"doc://3"}, search(t, x, "foo", Ranked))
		})
	}
}

func TestQueryOperators(t *testing.T) {
	x := newIndex(t, index.Inverted, map[string]string{
		"doc://a": "the quick brown fox jumps over the lazy dog",
		"doc://b": "a quick red fox",
		"doc://c": "brown dogs sleep quick",
		"doc://d": "foxes are quick and brown",
	})
	tests := []struct {
		query string
		opts  Options
		want  []string
	}{
		{"quick brown", Ranked, []string{"doc://a", "doc://c", "doc://d"}},
		{"quick brown", SpaceMeansOR, []string{"doc://a", "doc://b", "doc://c", "doc://d"}},
		{"red OR lazy", Ranked, []string{"doc://a", "doc://b"}},
		{"quick -brown", Ranked, []string{"doc://b"}},
		{"quick NOT fox", Ranked, []string{"doc://c", "doc://d"}},
		{`"quick brown"`, Ranked, []string{"doc://a", "doc://d"}},
		{`"brown quick"`, Ranked, nil},
		{`quick -"red fox"`, Ranked, []string{"doc://a", "doc://c", "doc://d"}},
		{"fox*", Ranked, []string{"doc://a", "doc://b", "doc://d"}},
		{"dog* quick", Ranked, []string{"doc://a", "doc://c"}},
		{"zebra", Ranked, nil},
		{"quick zebra", Ranked, nil},
		{"quick zebra", SpaceMeansOR, []string{"doc://a", "doc://b", "doc://c", "doc://d"}},
		{"the and", Ranked, nil},
		{"", Ranked, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.opts.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, search(t, x, tt.query, tt.opts))
		})
	}
}

func TestRankingOrder(t *testing.T) {
	x := newIndex(t, index.Inverted, map[string]string{
		"doc://1": "apple banana cherry date elderberry fig grape",
		"doc://2": "apple apple apple",
		"doc://3": "banana cherry",
	})
	hits := NewCursor(x, "apple", Ranked, 10, time.Second).Next()
	require.Len(t, hits, 2)
	assert.Equal(t, "doc://2", hits[0].URL)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits = NewCursor(x, "apple", Unranked, 10, time.Second).Next()
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Zero(t, h.Score)
	}
	assert.Equal(t, "doc://1", hits[0].URL, "equal scores order by document number")
}

func TestFindSimilar(t *testing.T) {
	x := newIndex(t, index.Inverted, map[string]string{
		"doc://1": "go channels goroutines concurrency",
		"doc://2": "rust ownership borrowing",
		"doc://3": "go modules",
	})
	hits := NewCursor(x, "goroutines and channels in go", FindSimilar, 10, time.Second).Next()
	require.Len(t, hits, 2)
	assert.Equal(t, "doc://1", hits[0].URL)
	assert.Equal(t, "doc://3", hits[1].URL)
}

func TestCursorStates(t *testing.T) {
	x := newIndex(t, index.Inverted, fooBarBaz)

	c := NewCursor(x, "bar", Ranked, 1, time.Second)
	assert.Equal(t, NotStarted, c.State())
	assert.True(t, c.IsInProgress())

	first := c.Next()
	require.Len(t, first, 1)
	assert.Equal(t, InProgress, c.State())

	second := c.Next()
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].URL, second[0].URL)

	assert.Nil(t, c.Next(), "first call after the last hit reports exhaustion")
	assert.Equal(t, Exhausted, c.State())
	assert.False(t, c.IsInProgress())
	assert.Nil(t, c.Next())
	assert.Equal(t, Exhausted, c.State(), "exhausted is terminal")

	c.Stop()
	assert.Equal(t, Exhausted, c.State())
}

func TestCursorFinalBatch(t *testing.T) {
	x := newIndex(t, index.Inverted, fooBarBaz)
	c := NewCursor(x, "bar", Ranked, 10, time.Second)
	hits := c.Next()
	assert.Len(t, hits, 2)
	assert.Equal(t, Exhausted, c.State())
	assert.Nil(t, c.Next())
}

func TestCursorStop(t *testing.T) {
	x := newIndex(t, index.Inverted, fooBarBaz)
	c := NewCursor(x, "bar", Ranked, 1, time.Second)
	require.Len(t, c.Next(), 1)
	c.Stop()
	assert.Equal(t, Stopped, c.State())
	assert.False(t, c.IsInProgress())
	assert.Nil(t, c.Next())
}

func TestCursorNonPositiveHits(t *testing.T) {
	x := newIndex(t, index.Inverted, fooBarBaz)
	for _, n := range []int{0, -5} {
		c := NewCursor(x, "bar", Ranked, n, time.Second)
		assert.Equal(t, Exhausted, c.State())
		assert.False(t, c.IsInProgress())
		assert.Nil(t, c.Next())
	}
}

func TestCursorSeesLaterMutations(t *testing.T) {
	x := newIndex(t, index.Inverted, fooBarBaz)
	c := NewCursor(x, "bar", Ranked, 1, time.Second)
	first := c.Next()
	require.Len(t, first, 1)
	assert.Equal(t, "doc://1", first[0].URL)

	removeDoc(t, x, "doc://2")
	require.NoError(t, x.Compact())
	indexDoc(t, x, "doc://4", "bar none")

	assert.Equal(t, []string{"doc://4"}, drain(t, c), "removed documents are never returned")
}

func TestCursorZeroTimeQuantum(t *testing.T) {
	docs := make(map[string]string, 3*quantum)
	for i := range 3 * quantum {
		docs[fmt.Sprintf("doc://%05d", i)] = "common words here"
	}
	x := newIndex(t, index.Inverted, docs)

	c := NewCursor(x, "common", Unranked, len(docs), 0)
	first := c.Next()
	assert.NotNil(t, first)
	assert.LessOrEqual(t, len(first), quantum)
	assert.True(t, c.IsInProgress())

	seen := len(first) + len(drain(t, c))
	assert.Equal(t, len(docs), seen)
}

func TestCursorDeadline(t *testing.T) {
	docs := make(map[string]string, 500)
	for i := range 500 {
		docs[fmt.Sprintf("doc://%04d", i)] = "common"
	}
	x := newIndex(t, index.Inverted, docs)

	c := NewCursor(x, "common", Unranked, 1000, time.Millisecond)
	base := time.Now()
	calls := 0
	c.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}
	hits := c.Next()
	require.NotNil(t, hits)
	assert.Len(t, hits, deadlineEvery-1, "scan stops at the first clock check past the deadline")
	assert.Equal(t, InProgress, c.State())
}

func BenchmarkCursor(b *testing.B) {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta", "kappa"}
	docs := make(map[string]string, 5000)
	for i := range 5000 {
		docs[fmt.Sprintf("doc://%05d", i)] = fmt.Sprintf("%s %s %s",
			words[i%len(words)], words[(i/3)%len(words)], words[(i/7)%len(words)])
	}
	x := newIndex(b, index.Inverted, docs)

	for b.Loop() {
		drain(b, NewCursor(x, "alpha OR gamma", Ranked, DefaultHitsAtATime, DefaultMaximumTime))
	}
}
