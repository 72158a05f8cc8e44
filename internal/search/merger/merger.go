package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/search/ranker"
)

// TopK keeps the best limit documents seen across any number of batches.
type TopK struct {
	limit int
	h     scoredDocHeap
}

func NewTopK(limit int) *TopK {
	if limit <= 0 {
		limit = 10
	}
	return &TopK{limit: limit}
}

func (t *TopK) Add(docs ...ranker.ScoredDoc) {
	for _, doc := range docs {
		heap.Push(&t.h, doc)
		if t.h.Len() > t.limit {
			heap.Pop(&t.h)
		}
	}
}

func (t *TopK) Len() int { return t.h.Len() }

// Result drains the heap, best first.
func (t *TopK) Result() []ranker.ScoredDoc {
	result := make([]ranker.ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ranker.ScoredDoc)
	}
	return result
}

func Merge(batches [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	t := NewTopK(limit)
	for _, batch := range batches {
		t.Add(batch...)
	}
	return t.Result()
}

type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Doc > h[j].Doc
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
