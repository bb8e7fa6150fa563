package stream

import "sort"

// KeyStream is a column of keys kept in ascending order by its users.
//
// Search looks for the first position at or after start whose key satisfies
// the mode (key >= target for GE and EQ, key > target for GT). The returned
// prefix is the number of entries skipped from start.
type KeyStream struct {
	column
	max uint64
}

var _ Stream = (*KeyStream)(nil)

// Reindex recomputes the maximum key.
func (k *KeyStream) Reindex() {
	k.max = 0
	for i := 0; i < k.data.n; i++ {
		if v := k.data.get(i); v > k.max {
			k.max = v
		}
	}
	k.stale = false
}

// Sum adds the keys in [from,to).
func (k *KeyStream) Sum(from, to int) uint64 {
	k.checkRange(from, to)
	return k.scanSum(from, to)
}

// Search runs a binary search over [start,Size()).
func (k *KeyStream) Search(mode SearchMode, start int, target uint64) (int, uint64) {
	k.checkFresh()
	if start >= k.data.n {
		return k.data.n, 0
	}
	n := k.data.n - start
	j := sort.Search(n, func(i int) bool {
		return mode.Reached(k.data.get(start+i), target)
	})
	return start + j, uint64(j)
}

// Rank counts occurrences of value in [0,upTo).
func (k *KeyStream) Rank(value uint64, upTo int) int {
	k.checkRange(0, upTo)
	return k.scanRank(value, 0, upTo)
}

// Select finds the rank-th occurrence of value.
func (k *KeyStream) Select(value uint64, rank int) (int, bool) {
	if rank <= 0 {
		return 0, false
	}
	return k.scanSelect(value, 0, rank)
}

// Summary returns [count, max key].
func (k *KeyStream) Summary() Summary {
	k.checkFresh()
	return Summary{uint64(k.data.n), k.max}
}

// SummaryRange returns [to-from, max key in range].
func (k *KeyStream) SummaryRange(from, to int) Summary {
	k.checkRange(from, to)
	var mx uint64
	for i := from; i < to; i++ {
		if v := k.data.get(i); v > mx {
			mx = v
		}
	}
	return Summary{uint64(to - from), mx}
}

// Clone returns a deep copy.
func (k *KeyStream) Clone() Stream {
	return &KeyStream{column: k.clone(), max: k.max}
}
