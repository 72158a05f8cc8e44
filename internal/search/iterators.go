package search

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/index"
)

// docIter walks matching document numbers in increasing order.
type docIter interface {
	// seek moves to the first match >= target. Seeking backwards is a no-op
	// that returns the current match.
	seek(target uint32) (uint32, bool)
	// score is the contribution of the current match, if it is doc.
	score(doc uint32, tfNorm func(tf int) float64) float64
}

type termIter struct {
	pl     index.PostingList
	i      int
	weight float64
}

func (t *termIter) seek(target uint32) (uint32, bool) {
	if t.i < len(t.pl) && t.pl[t.i].Doc >= target {
		return t.pl[t.i].Doc, true
	}
	t.i += t.pl[t.i:].Seek(target)
	if t.i >= len(t.pl) {
		return 0, false
	}
	return t.pl[t.i].Doc, true
}

func (t *termIter) positions(doc uint32) []int {
	if t.i < len(t.pl) && t.pl[t.i].Doc == doc {
		return t.pl[t.i].Positions
	}
	return nil
}

func (t *termIter) score(doc uint32, tfNorm func(int) float64) float64 {
	if t.i >= len(t.pl) || t.pl[t.i].Doc != doc {
		return 0
	}
	return t.weight * tfNorm(t.pl[t.i].Frequency())
}

// position caches where a compound iterator stands.
type position struct {
	doc     uint32
	ok      bool
	started bool
}

func (p *position) settled(target uint32) bool {
	return p.started && (!p.ok || p.doc >= target)
}

func (p *position) set(doc uint32, ok bool) (uint32, bool) {
	p.doc, p.ok, p.started = doc, ok, true
	return doc, ok
}

type unionIter struct {
	pos      position
	children []docIter
	docs     []uint32
	oks      []bool
}

func newUnion(children []docIter) *unionIter {
	return &unionIter{
		children: children,
		docs:     make([]uint32, len(children)),
		oks:      make([]bool, len(children)),
	}
}

func (u *unionIter) seek(target uint32) (uint32, bool) {
	if u.pos.settled(target) {
		return u.pos.doc, u.pos.ok
	}
	best, found := uint32(math.MaxUint32), false
	for i, c := range u.children {
		u.docs[i], u.oks[i] = c.seek(target)
		if u.oks[i] && (!found || u.docs[i] < best) {
			best, found = u.docs[i], true
		}
	}
	return u.pos.set(best, found)
}

func (u *unionIter) score(doc uint32, tfNorm func(int) float64) float64 {
	var s float64
	for i, c := range u.children {
		if u.oks[i] && u.docs[i] == doc {
			s += c.score(doc, tfNorm)
		}
	}
	return s
}

type andIter struct {
	pos      position
	children []docIter
	// terms is set for phrases, in phrase order.
	terms []*termIter
}

func (a *andIter) seek(target uint32) (uint32, bool) {
	if a.pos.settled(target) {
		return a.pos.doc, a.pos.ok
	}
	for {
		d, ok := a.leapfrog(target)
		if !ok {
			return a.pos.set(0, false)
		}
		if a.terms == nil || a.consecutive(d) {
			return a.pos.set(d, true)
		}
		if d == math.MaxUint32 {
			return a.pos.set(0, false)
		}
		target = d + 1
	}
}

// leapfrog finds the first document >= target present in every child.
func (a *andIter) leapfrog(target uint32) (uint32, bool) {
	d := target
	for agreed := false; !agreed; {
		agreed = true
		for _, c := range a.children {
			cd, ok := c.seek(d)
			if !ok {
				return 0, false
			}
			if cd > d {
				d = cd
				agreed = false
				break
			}
		}
	}
	return d, true
}

func (a *andIter) consecutive(doc uint32) bool {
	for _, start := range a.terms[0].positions(doc) {
		match := true
		for k := 1; k < len(a.terms); k++ {
			ps := a.terms[k].positions(doc)
			i := sort.SearchInts(ps, start+k)
			if i >= len(ps) || ps[i] != start+k {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (a *andIter) score(doc uint32, tfNorm func(int) float64) float64 {
	var s float64
	for _, c := range a.children {
		s += c.score(doc, tfNorm)
	}
	return s
}
