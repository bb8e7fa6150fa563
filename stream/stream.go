package stream

import "github.com/cockroachdb/errors"

// SearchMode selects the tie-break policy of a search.
type SearchMode uint8

const (
	// GE selects the first position whose accumulated value reaches the target.
	GE SearchMode = iota
	// GT selects the first position whose accumulated value exceeds the target.
	GT
	// EQ searches like GE; equality is judged by the caller on the result.
	EQ
)

func (m SearchMode) String() string {
	switch m {
	case GE:
		return "GE"
	case GT:
		return "GT"
	case EQ:
		return "EQ"
	}
	return "?"
}

// Reached reports whether an accumulated value satisfies target under m.
func (m SearchMode) Reached(value, target uint64) bool {
	if m == GT {
		return value > target
	}
	return value >= target
}

// Stream is one packed column inside a leaf node.
//
// The set of implementations is closed: ArrayStream, SumStream, KeyStream and
// SymbolStream.
type Stream interface {
	Descriptor() Descriptor
	// Size returns the number of values.
	Size() int
	// ByteSize returns the packed size of the stream inside a block.
	ByteSize() int
	// Access returns the value at position i.
	Access(i int) uint64
	// Set overwrites the value at position i.
	Set(i int, v uint64)
	// Sum returns the sum of values in [from,to).
	Sum(from, to int) uint64
	// Search scans forward from start. See the concrete kinds for the meaning
	// of target and of the returned prefix. If no position qualifies, idx is
	// Size() and prefix covers [start,Size()).
	Search(mode SearchMode, start int, target uint64) (idx int, prefix uint64)
	// Rank returns the number of occurrences of value in [0,upTo).
	Rank(value uint64, upTo int) int
	// Select returns the position of the rank-th (1-based) occurrence of value.
	Select(value uint64, rank int) (int, bool)
	// InsertSpace opens n zero slots at pos.
	InsertSpace(pos, n int)
	// RemoveSpace drops n slots starting at pos.
	RemoveSpace(pos, n int)
	// SplitTo moves values [pos,Size()) to the front of other.
	SplitTo(other Stream, pos int) error
	// MergeWith appends all values of other to the receiver.
	MergeWith(other Stream) error
	// Reindex recomputes the internal index after raw mutation.
	Reindex()
	// Summary returns the aggregate of the whole stream.
	Summary() Summary
	// SummaryRange returns the aggregate of values in [from,to).
	SummaryRange(from, to int) Summary
	// Clone returns a deep copy.
	Clone() Stream

	base() *column
}

// column holds the packed data shared by all stream kinds.
type column struct {
	desc  Descriptor
	data  packed
	stale bool
}

func (c *column) base() *column { return c }

// Descriptor returns the column layout.
func (c *column) Descriptor() Descriptor { return c.desc }

// Size returns the number of values.
func (c *column) Size() int { return c.data.n }

// ByteSize returns the packed size of the column.
func (c *column) ByteSize() int { return c.desc.ByteSize(c.data.n) }

// Access returns the value at i.
func (c *column) Access(i int) uint64 {
	assert(i >= 0 && i < c.data.n, "stream access out of range")
	return c.data.get(i)
}

// Set overwrites the value at i and marks the index stale.
func (c *column) Set(i int, v uint64) {
	assert(i >= 0 && i < c.data.n, "stream set out of range")
	c.data.set(i, v)
	c.stale = true
}

// InsertSpace opens n zero slots at pos.
func (c *column) InsertSpace(pos, n int) {
	c.data.insertSpace(pos, n)
	c.stale = true
}

// RemoveSpace drops n slots at pos.
func (c *column) RemoveSpace(pos, n int) {
	c.data.removeSpace(pos, n)
	c.stale = true
}

func (c *column) checkFresh() {
	assert(!c.stale, "stream index is stale; Reindex required")
}

func (c *column) scanSum(from, to int) uint64 {
	var s uint64
	for i := from; i < to; i++ {
		s += c.data.get(i)
	}
	return s
}

func (c *column) scanRank(value uint64, from, to int) int {
	r := 0
	for i := from; i < to; i++ {
		if c.data.get(i) == value {
			r++
		}
	}
	return r
}

func (c *column) scanSelect(value uint64, from, rank int) (int, bool) {
	for i := from; i < c.data.n; i++ {
		if c.data.get(i) == value {
			rank--
			if rank == 0 {
				return i, true
			}
		}
	}
	return c.data.n, false
}

// SplitTo moves values [pos,Size()) to the front of other.
func (c *column) SplitTo(other Stream, pos int) error {
	o := other.base()
	if o.desc != c.desc {
		return errors.Wrapf(ErrKindMismatch, "split %s into %s", c.desc.Signature(), o.desc.Signature())
	}
	if pos < 0 || pos > c.data.n {
		return errors.Wrapf(ErrIndexOutOfBounds, "split at %d of %d", pos, c.data.n)
	}
	k := c.data.n - pos
	o.data.insertSpace(0, k)
	for i := 0; i < k; i++ {
		o.data.set(i, c.data.get(pos+i))
	}
	c.data.removeSpace(pos, k)
	c.stale, o.stale = true, true
	return nil
}

// MergeWith appends the values of other.
func (c *column) MergeWith(other Stream) error {
	o := other.base()
	if o.desc != c.desc {
		return errors.Wrapf(ErrKindMismatch, "merge %s with %s", c.desc.Signature(), o.desc.Signature())
	}
	at := c.data.n
	c.data.resize(at + o.data.n)
	for i := 0; i < o.data.n; i++ {
		c.data.set(at+i, o.data.get(i))
	}
	c.stale = true
	return nil
}

func (c *column) clone() column {
	return column{desc: c.desc, data: c.data.clone(), stale: c.stale}
}

func (c *column) countSummary(from, to int) Summary {
	s := Zero(c.desc)
	s[0] = uint64(to - from)
	return s
}

func (c *column) checkRange(from, to int) {
	assert(from >= 0 && from <= to && to <= c.data.n, "stream range out of bounds")
}
