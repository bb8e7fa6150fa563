package stream

// sumBlock is the number of values covered by one prefix-index slot.
const sumBlock = 64

// SumStream is a column of non-negative values with a prefix-sum index.
//
// Search looks for the first position where the running sum, counted from
// start, reaches the target. The returned prefix is the sum of the values
// strictly before that position.
type SumStream struct {
	column
	// prefix[b] is the sum of values in [0, b*sumBlock).
	prefix []uint64
	total  uint64
}

var _ Stream = (*SumStream)(nil)

// Reindex rebuilds the prefix index.
func (s *SumStream) Reindex() {
	blocks := s.data.n/sumBlock + 1
	s.prefix = s.prefix[:0]
	var acc uint64
	for b := 0; b < blocks; b++ {
		s.prefix = append(s.prefix, acc)
		end := min((b+1)*sumBlock, s.data.n)
		acc += s.scanSum(b*sumBlock, end)
	}
	s.total = acc
	s.stale = false
}

// pre returns the sum of values in [0,i).
func (s *SumStream) pre(i int) uint64 {
	if i == s.data.n {
		return s.total
	}
	b := i / sumBlock
	return s.prefix[b] + s.scanSum(b*sumBlock, i)
}

// Sum returns the sum of values in [from,to).
func (s *SumStream) Sum(from, to int) uint64 {
	s.checkFresh()
	s.checkRange(from, to)
	return s.pre(to) - s.pre(from)
}

// Search scans forward from start, skipping whole index blocks when possible.
func (s *SumStream) Search(mode SearchMode, start int, target uint64) (int, uint64) {
	s.checkFresh()
	if start >= s.data.n {
		return s.data.n, 0
	}
	base := s.pre(start)
	if !mode.Reached(s.total-base, target) {
		return s.data.n, s.total - base
	}
	i := start
	// skip index blocks whose end does not yet reach the target
	for b := start/sumBlock + 1; b < len(s.prefix); b++ {
		if mode.Reached(s.prefix[b]-base, target) {
			break
		}
		i = b * sumBlock
	}
	acc := s.pre(i) - base
	for ; i < s.data.n; i++ {
		v := s.data.get(i)
		if mode.Reached(acc+v, target) {
			return i, acc
		}
		acc += v
	}
	assert(false, "sum stream index inconsistent with total")
	return s.data.n, acc
}

// Rank counts occurrences of value in [0,upTo).
func (s *SumStream) Rank(value uint64, upTo int) int {
	s.checkRange(0, upTo)
	return s.scanRank(value, 0, upTo)
}

// Select finds the rank-th occurrence of value.
func (s *SumStream) Select(value uint64, rank int) (int, bool) {
	if rank <= 0 {
		return 0, false
	}
	return s.scanSelect(value, 0, rank)
}

// Summary returns [count, total].
func (s *SumStream) Summary() Summary {
	s.checkFresh()
	return Summary{uint64(s.data.n), s.total}
}

// SummaryRange returns [to-from, Sum(from,to)].
func (s *SumStream) SummaryRange(from, to int) Summary {
	return Summary{uint64(to - from), s.Sum(from, to)}
}

// Clone returns a deep copy including the index.
func (s *SumStream) Clone() Stream {
	return &SumStream{
		column: s.clone(),
		prefix: append([]uint64(nil), s.prefix...),
		total:  s.total,
	}
}
