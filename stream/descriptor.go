package stream

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind selects the concrete stream implementation.
type Kind uint8

const (
	// Array is a plain fixed-width column. Its summary is the element count.
	Array Kind = iota + 1
	// Sum is a column with a prefix-sum index. Its summary adds the total.
	Sum
	// Key is a column of ascending keys. Its summary adds the maximum key.
	Key
	// Symbol is a column of symbols over a small alphabet. Its summary adds
	// one occurrence count per symbol.
	Symbol
)

func (k Kind) String() string {
	switch k {
	case Array:
		return "array"
	case Sum:
		return "sum"
	case Key:
		return "key"
	case Symbol:
		return "symbol"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MaxSymbolBits is the widest alphabet a Symbol stream supports (8 bits = 256 symbols).
const MaxSymbolBits = 8

// Descriptor describes one column of a leaf layout.
type Descriptor struct {
	Kind Kind
	// Bits is the packed width of a value. For Symbol streams it is the
	// alphabet width, 1..MaxSymbolBits.
	Bits int
}

// Validate checks that a descriptor can be instantiated.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case Array, Sum, Key:
		if d.Bits < 1 || d.Bits > 64 {
			return errors.Wrapf(ErrInvalidDescriptor, "%s stream with %d bits", d.Kind, d.Bits)
		}
	case Symbol:
		if d.Bits < 1 || d.Bits > MaxSymbolBits {
			return errors.Wrapf(ErrInvalidDescriptor, "symbol stream with %d bits", d.Bits)
		}
	default:
		return errors.Wrapf(ErrInvalidDescriptor, "unknown kind %d", uint8(d.Kind))
	}
	return nil
}

// Alphabet returns the number of distinct symbols of a Symbol stream, or 0.
func (d Descriptor) Alphabet() int {
	if d.Kind != Symbol {
		return 0
	}
	return 1 << d.Bits
}

// SummaryWidth returns the number of slots of a summary of this stream.
func (d Descriptor) SummaryWidth() int {
	switch d.Kind {
	case Sum, Key:
		return 2
	case Symbol:
		return 1 + d.Alphabet()
	}
	return 1
}

// Signature is a stable textual form of the descriptor, used to derive node
// type tags.
func (d Descriptor) Signature() string {
	return fmt.Sprintf("%s/%d", d.Kind, d.Bits)
}

// ByteSize returns the packed size of a column of n values.
func (d Descriptor) ByteSize(n int) int {
	return headerBytes + (n*d.Bits+7)/8
}

// New creates an empty stream for the descriptor.
func (d Descriptor) New() Stream {
	assert(d.Validate() == nil, "stream.New called with invalid descriptor")
	base := column{desc: d, data: newPacked(d.Bits)}
	switch d.Kind {
	case Sum:
		return &SumStream{column: base}
	case Key:
		return &KeyStream{column: base}
	case Symbol:
		return &SymbolStream{column: base}
	}
	return &ArrayStream{column: base}
}

// headerBytes is the fixed packed overhead of one stream inside a block.
const headerBytes = 8

// --- Summaries -------------------------------------------------------------

// Summary is the aggregate of a stream (or of the same stream over a whole
// subtree). Slot 0 always holds the element count.
type Summary []uint64

// Zero returns the neutral summary for a descriptor.
func Zero(d Descriptor) Summary {
	return make(Summary, d.SummaryWidth())
}

// Count returns the element count of a summary.
func (s Summary) Count() uint64 {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Value returns the kind specific aggregate: the total of a Sum stream, the
// max key of a Key stream. Returns 0 for other kinds.
func (s Summary) Value() uint64 {
	if len(s) < 2 {
		return 0
	}
	return s[1]
}

// Symbols returns the symbol occurrence count of a Symbol stream summary.
func (s Summary) Symbols(symbol int) uint64 {
	if symbol < 0 || 1+symbol >= len(s) {
		return 0
	}
	return s[1+symbol]
}

// Equal compares two summaries slot by slot.
func (s Summary) Equal(other Summary) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of s.
func (s Summary) Clone() Summary {
	return append(Summary(nil), s...)
}

// Combine folds summary s into acc for descriptor d.
//
// For summaries a, b, c Combine is associative and Zero(d) is neutral. Key
// summaries take the max key; every other slot adds.
func Combine(d Descriptor, acc Summary, s Summary) {
	assert(len(acc) == len(s), "stream.Combine with summaries of different width")
	acc[0] += s[0]
	switch d.Kind {
	case Key:
		if s[0] > 0 && (acc[0] == s[0] || s[1] > acc[1]) {
			acc[1] = s[1]
		}
	default:
		for i := 1; i < len(acc); i++ {
			acc[i] += s[i]
		}
	}
}
