package instance

// MidpointIndex computes a fractional group_index strictly between before
// and after (either may be nil, meaning "no neighbour on that side"),
// implementing the Group index glossary entry: "a fractional real-valued
// ordering key permitting O(1) inserts and moves without renumbering
// neighbours."
func MidpointIndex(before, after *float64) float64 {
	switch {
	case before == nil && after == nil:
		return 0
	case before == nil:
		return *after - 1
	case after == nil:
		return *before + 1
	default:
		return (*before + *after) / 2
	}
}

// IndicesCollapsed reports whether before/after have converged to the
// point where floating-point precision can no longer represent a distinct
// midpoint, signalling the group must be renumbered (spec.md §4.3).
func IndicesCollapsed(before, after float64) bool {
	mid := (before + after) / 2
	return mid == before || mid == after
}

// Renumber assigns evenly-spaced integer indices to an ordered id slice,
// used when MidpointIndex precision collapses.
func Renumber(ids []uint) map[uint]float64 {
	out := make(map[uint]float64, len(ids))
	for i, id := range ids {
		out[id] = float64(i)
	}
	return out
}
