package stream

// symbolBlock is the number of symbols covered by one rank-index slot.
const symbolBlock = 256

// SymbolStream is a column of symbols over an alphabet of 1<<Bits symbols,
// with a rank index.
//
// Search treats every position as weight 1: it finds the position of the
// target-th entry counted from start (1-based), the prefix being the number
// of entries before it.
type SymbolStream struct {
	column
	// cum[b*alphabet+s] is the count of symbol s in [0, b*symbolBlock).
	cum    []uint32
	totals []uint64
}

var _ Stream = (*SymbolStream)(nil)

// Reindex rebuilds the rank index.
func (y *SymbolStream) Reindex() {
	a := y.desc.Alphabet()
	blocks := y.data.n/symbolBlock + 1
	if cap(y.cum) >= blocks*a {
		y.cum = y.cum[:blocks*a]
		clear(y.cum)
	} else {
		y.cum = make([]uint32, blocks*a)
	}
	running := make([]uint32, a)
	for b := 0; b < blocks; b++ {
		copy(y.cum[b*a:(b+1)*a], running)
		end := min((b+1)*symbolBlock, y.data.n)
		for i := b * symbolBlock; i < end; i++ {
			running[y.data.get(i)]++
		}
	}
	y.totals = make([]uint64, a)
	for s, c := range running {
		y.totals[s] = uint64(c)
	}
	y.stale = false
}

// Sum adds the symbol values in [from,to).
func (y *SymbolStream) Sum(from, to int) uint64 {
	y.checkRange(from, to)
	return y.scanSum(from, to)
}

// Search finds the target-th position counted from start.
func (y *SymbolStream) Search(mode SearchMode, start int, target uint64) (int, uint64) {
	if start >= y.data.n {
		return y.data.n, 0
	}
	n := uint64(y.data.n - start)
	skip := target
	if mode != GT && skip > 0 {
		skip--
	}
	if skip >= n {
		return y.data.n, n
	}
	return start + int(skip), skip
}

// Rank counts occurrences of symbol value in [0,upTo).
func (y *SymbolStream) Rank(value uint64, upTo int) int {
	y.checkFresh()
	y.checkRange(0, upTo)
	a := y.desc.Alphabet()
	if value >= uint64(a) {
		return 0
	}
	b := upTo / symbolBlock
	return int(y.cum[b*a+int(value)]) + y.scanRank(value, b*symbolBlock, upTo)
}

// Select finds the position of the rank-th (1-based) occurrence of value.
func (y *SymbolStream) Select(value uint64, rank int) (int, bool) {
	y.checkFresh()
	a := y.desc.Alphabet()
	if rank <= 0 || value >= uint64(a) || uint64(rank) > y.totals[value] {
		return y.data.n, false
	}
	blocks := len(y.cum) / a
	// last block whose starting count is below rank
	lo, hi := 0, blocks-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int(y.cum[mid*a+int(value)]) < rank {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return y.scanSelect(value, lo*symbolBlock, rank-int(y.cum[lo*a+int(value)]))
}

// Summary returns [count, occurrences of symbol 0, 1, ...].
func (y *SymbolStream) Summary() Summary {
	y.checkFresh()
	s := make(Summary, 1+len(y.totals))
	s[0] = uint64(y.data.n)
	copy(s[1:], y.totals)
	return s
}

// SummaryRange counts symbols in [from,to).
func (y *SymbolStream) SummaryRange(from, to int) Summary {
	y.checkRange(from, to)
	s := Zero(y.desc)
	s[0] = uint64(to - from)
	for i := from; i < to; i++ {
		s[1+y.data.get(i)]++
	}
	return s
}

// Clone returns a deep copy including the index.
func (y *SymbolStream) Clone() Stream {
	return &SymbolStream{
		column: y.clone(),
		cum:    append([]uint32(nil), y.cum...),
		totals: append([]uint64(nil), y.totals...),
	}
}
