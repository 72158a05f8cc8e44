package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/ranker"
)

func TestMerge(t *testing.T) {
	batches := [][]ranker.ScoredDoc{
		{{Doc: 1, Score: 0.5}, {Doc: 2, Score: 3}},
		{{Doc: 3, Score: 2}, {Doc: 4, Score: 2}},
		{},
		{{Doc: 5, Score: 0.1}},
	}
	got := Merge(batches, 3)
	assert.Equal(t, []ranker.ScoredDoc{
		{Doc: 2, Score: 3},
		{Doc: 3, Score: 2},
		{Doc: 4, Score: 2},
	}, got)
}

func TestTopKDefaultLimit(t *testing.T) {
	k := NewTopK(0)
	for i := range 20 {
		k.Add(ranker.ScoredDoc{Doc: uint32(i + 1), Score: float64(i)})
	}
	assert.Equal(t, 10, k.Len())
	res := k.Result()
	assert.Equal(t, uint32(20), res[0].Doc)
	assert.Equal(t, 0, k.Len())
}
