package index

import (
	"slices"
	"sort"
)

// Posting records one document's occurrences of a term.
type Posting struct {
	Doc       uint32 `json:"d"`
	Positions []int  `json:"p"`
}

func (p Posting) Frequency() int { return len(p.Positions) }

// PostingList is ordered by document number with at most one entry per
// document.
type PostingList []Posting

// Find returns the index of doc in the list, or the index where it would be
// inserted.
func (pl PostingList) Find(doc uint32) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].Doc >= doc })
	return i, i < len(pl) && pl[i].Doc == doc
}

// Seek returns the index of the first posting with a document number
// greater than or equal to doc.
func (pl PostingList) Seek(doc uint32) int {
	i, _ := pl.Find(doc)
	return i
}

func (pl PostingList) upsert(p Posting) PostingList {
	i, found := pl.Find(p.Doc)
	if found {
		pl[i] = p
		return pl
	}
	return slices.Insert(pl, i, p)
}

func (pl PostingList) remove(doc uint32) PostingList {
	i, found := pl.Find(doc)
	if !found {
		return pl
	}
	return slices.Delete(pl, i, i+1)
}

// DocumentNumbers lists the documents in the list.
func (pl PostingList) DocumentNumbers() []uint32 {
	docs := make([]uint32, len(pl))
	for i, p := range pl {
		docs[i] = p.Doc
	}
	return docs
}
