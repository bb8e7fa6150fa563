package stream

// ArrayStream is a plain fixed-width column without an index.
//
// Search treats the values as weights and looks for the position where the
// running sum reaches the target.
type ArrayStream struct {
	column
}

var _ Stream = (*ArrayStream)(nil)

// Sum adds the values in [from,to) by scanning.
func (a *ArrayStream) Sum(from, to int) uint64 {
	a.checkRange(from, to)
	return a.scanSum(from, to)
}

// Search scans forward from start.
func (a *ArrayStream) Search(mode SearchMode, start int, target uint64) (int, uint64) {
	var acc uint64
	for i := start; i < a.data.n; i++ {
		v := a.data.get(i)
		if mode.Reached(acc+v, target) {
			return i, acc
		}
		acc += v
	}
	return a.data.n, acc
}

// Rank counts occurrences of value in [0,upTo).
func (a *ArrayStream) Rank(value uint64, upTo int) int {
	a.checkRange(0, upTo)
	return a.scanRank(value, 0, upTo)
}

// Select finds the rank-th occurrence of value.
func (a *ArrayStream) Select(value uint64, rank int) (int, bool) {
	if rank <= 0 {
		return 0, false
	}
	return a.scanSelect(value, 0, rank)
}

// Reindex clears the stale marker; there is no index to rebuild.
func (a *ArrayStream) Reindex() { a.stale = false }

// Summary returns [count].
func (a *ArrayStream) Summary() Summary {
	return a.countSummary(0, a.data.n)
}

// SummaryRange returns [to-from].
func (a *ArrayStream) SummaryRange(from, to int) Summary {
	a.checkRange(from, to)
	return a.countSummary(from, to)
}

// Clone returns a deep copy.
func (a *ArrayStream) Clone() Stream {
	return &ArrayStream{column: a.clone()}
}
