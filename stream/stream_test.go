package stream

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, d Descriptor, values []uint64) Stream {
	t.Helper()
	s := d.New()
	s.InsertSpace(0, len(values))
	for i, v := range values {
		s.Set(i, v)
	}
	s.Reindex()
	return s
}

func TestDescriptorValidate(t *testing.T) {
	bad := []Descriptor{
		{Kind: Sum, Bits: 0},
		{Kind: Key, Bits: 65},
		{Kind: Symbol, Bits: 9},
		{Kind: Kind(42), Bits: 8},
	}
	for _, d := range bad {
		if err := d.Validate(); !errors.Is(err, ErrInvalidDescriptor) {
			t.Fatalf("expected ErrInvalidDescriptor for %v, got %v", d, err)
		}
	}
	if err := (Descriptor{Kind: Symbol, Bits: 8}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := (Descriptor{Kind: Symbol, Bits: 2}).SummaryWidth(); w != 5 {
		t.Fatalf("expected summary width 5 for 2-bit symbols, got %d", w)
	}
}

func TestSumStreamSumAndSearch(t *testing.T) {
	d := Descriptor{Kind: Sum, Bits: 16}
	values := make([]uint64, 300)
	for i := range values {
		values[i] = uint64(i%7 + 1)
	}
	s := fill(t, d, values)
	naive := func(from, to int) uint64 {
		var acc uint64
		for i := from; i < to; i++ {
			acc += values[i]
		}
		return acc
	}
	for _, r := range [][2]int{{0, 0}, {0, 300}, {63, 65}, {10, 200}, {128, 300}} {
		if got, want := s.Sum(r[0], r[1]), naive(r[0], r[1]); got != want {
			t.Fatalf("Sum%v = %d, want %d", r, got, want)
		}
	}
	for start := 0; start < 300; start += 37 {
		for _, target := range []uint64{1, 5, 100, 700} {
			idx, prefix := s.Search(GE, start, target)
			// idx is the first position where the running sum reaches target
			want := start
			var acc uint64
			for ; want < len(values) && acc+values[want] < target; want++ {
				acc += values[want]
			}
			require.Equal(t, want, idx, "start=%d target=%d", start, target)
			require.Equal(t, acc, prefix, "start=%d target=%d", start, target)
		}
	}
	if !s.Summary().Equal(Summary{300, naive(0, 300)}) {
		t.Fatalf("unexpected summary %v", s.Summary())
	}
}

func TestSumStreamSearchGT(t *testing.T) {
	s := fill(t, Descriptor{Kind: Sum, Bits: 8}, []uint64{2, 2, 2, 2})
	idx, prefix := s.Search(GE, 0, 4)
	require.Equal(t, 1, idx)
	require.Equal(t, uint64(2), prefix)
	idx, prefix = s.Search(GT, 0, 4)
	require.Equal(t, 2, idx)
	require.Equal(t, uint64(4), prefix)
	idx, prefix = s.Search(GT, 0, 8)
	require.Equal(t, 4, idx)
	require.Equal(t, uint64(8), prefix)
}

func TestKeyStreamSearchModes(t *testing.T) {
	k := fill(t, Descriptor{Kind: Key, Bits: 32}, []uint64{10, 20, 20, 30, 40})
	cases := []struct {
		mode   SearchMode
		start  int
		target uint64
		idx    int
	}{
		{GE, 0, 20, 1},
		{GT, 0, 20, 3},
		{EQ, 0, 25, 3},
		{GE, 2, 5, 2},
		{GE, 0, 50, 5},
	}
	for _, c := range cases {
		idx, prefix := k.Search(c.mode, c.start, c.target)
		if idx != c.idx || prefix != uint64(c.idx-c.start) {
			t.Fatalf("%s search %d from %d: got (%d,%d), want idx %d", c.mode, c.target, c.start, idx, prefix, c.idx)
		}
	}
	require.Equal(t, Summary{5, 40}, k.Summary())
	require.Equal(t, Summary{2, 30}, k.SummaryRange(2, 4))
}

func TestSymbolStreamRankSelect(t *testing.T) {
	d := Descriptor{Kind: Symbol, Bits: 3}
	r := rand.New(rand.NewSource(7))
	values := make([]uint64, 2000)
	for i := range values {
		values[i] = uint64(r.Intn(d.Alphabet()))
	}
	s := fill(t, d, values)
	counts := make([]int, d.Alphabet())
	for pos := 0; pos <= len(values); pos++ {
		for sym := 0; sym < d.Alphabet(); sym++ {
			if got := s.Rank(uint64(sym), pos); got != counts[sym] {
				t.Fatalf("Rank(%d,%d) = %d, want %d", sym, pos, got, counts[sym])
			}
		}
		if pos < len(values) {
			sym := values[pos]
			counts[sym]++
			at, ok := s.Select(sym, counts[sym])
			if !ok || at != pos {
				t.Fatalf("Select(%d,%d) = (%d,%v), want %d", sym, counts[sym], at, ok, pos)
			}
		}
	}
	if _, ok := s.Select(0, counts[0]+1); ok {
		t.Fatalf("expected Select past the last occurrence to fail")
	}
	sum := s.Summary()
	for sym, c := range counts {
		require.Equal(t, uint64(c), sum.Symbols(sym))
	}
}

func TestSplitAndMerge(t *testing.T) {
	d := Descriptor{Kind: Sum, Bits: 12}
	values := make([]uint64, 100)
	for i := range values {
		values[i] = uint64(i)
	}
	left := fill(t, d, values)
	right := d.New()
	require.NoError(t, left.SplitTo(right, 40))
	left.Reindex()
	right.Reindex()
	require.Equal(t, 40, left.Size())
	require.Equal(t, 60, right.Size())
	require.Equal(t, uint64(40), right.Access(0))
	total := left.Summary()
	Combine(d, total, right.Summary())
	require.Equal(t, Summary{100, 4950}, total)

	require.NoError(t, left.MergeWith(right))
	left.Reindex()
	for i := range values {
		require.Equal(t, values[i], left.Access(i))
	}

	other := Descriptor{Kind: Key, Bits: 12}.New()
	if err := left.SplitTo(other, 3); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
}

func TestStaleIndexPanics(t *testing.T) {
	s := fill(t, Descriptor{Kind: Sum, Bits: 8}, []uint64{1, 2, 3})
	s.InsertSpace(1, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Sum on a stale stream to panic")
		}
	}()
	s.Sum(0, 2)
}

func TestCombineKeyTakesMax(t *testing.T) {
	d := Descriptor{Kind: Key, Bits: 16}
	acc := Zero(d)
	Combine(d, acc, Summary{0, 0})
	Combine(d, acc, Summary{3, 17})
	Combine(d, acc, Summary{2, 9})
	require.Equal(t, Summary{5, 17}, acc)
}

func TestCloneIsIndependent(t *testing.T) {
	a := fill(t, Descriptor{Kind: Symbol, Bits: 2}, []uint64{0, 1, 2, 3})
	b := a.Clone()
	b.Set(0, 3)
	b.Reindex()
	require.Equal(t, uint64(0), a.Access(0))
	require.Equal(t, uint64(1), a.Summary().Symbols(0))
	require.Equal(t, uint64(0), b.Summary().Symbols(0))
}
