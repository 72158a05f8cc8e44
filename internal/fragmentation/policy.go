package fragmentation

// Policy decides when automatic compaction runs. Both thresholds must be
// reached: at least MinUncompacted removed documents, and a removed-to-live
// ratio of at least MaxRatio.
type Policy struct {
	MinUncompacted int
	MaxRatio       float64
}

func (p Policy) ShouldCompact(uncompacted, live int) bool {
	if uncompacted <= 0 || uncompacted < p.MinUncompacted {
		return false
	}
	if live == 0 {
		return true
	}
	return float64(uncompacted)/float64(live) >= p.MaxRatio
}
