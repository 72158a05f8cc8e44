package search

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

const (
	DefaultHitsAtATime = 256
	DefaultMaximumTime = 5 * time.Second
)

// Options is a set of search flags. The zero value is a ranked search with
// AND between bare words.
type Options uint8

const (
	// Unranked returns every hit with a zero score.
	Unranked Options = 1 << iota
	// SpaceMeansOR joins bare words with OR instead of AND.
	SpaceMeansOR
	// FindSimilar treats the query as example text and matches documents
	// sharing any of its terms.
	FindSimilar

	Ranked Options = 0
)

var optionNames = []struct {
	opt  Options
	name string
}{
	{Unranked, "unranked"},
	{SpaceMeansOR, "spaceMeansOR"},
	{FindSimilar, "findSimilar"},
}

func (o Options) Has(flag Options) bool { return o&flag != 0 }

func (o Options) String() string {
	var names []string
	for _, n := range optionNames {
		if o.Has(n.opt) {
			names = append(names, n.name)
		}
	}
	if !o.Has(Unranked) {
		names = append([]string{"ranked"}, names...)
	}
	return strings.Join(names, "|")
}

// ParseOptions builds Options from flag names, ignoring case. "ranked" is
// accepted and adds nothing.
func ParseOptions(names ...string) (Options, error) {
	var o Options
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || strings.EqualFold(name, "ranked") {
			continue
		}
		found := false
		for _, n := range optionNames {
			if strings.EqualFold(name, n.name) {
				o |= n.opt
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown search option %q: %w", name, apperrors.ErrInvalidInput)
		}
	}
	return o, nil
}
