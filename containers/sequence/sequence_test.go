package sequence

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/store"
	"github.com/stretchr/testify/require"
)

func newSequence(t *testing.T, blockSize, bits int) *Sequence {
	t.Helper()
	mem, err := store.Open(store.Options{BlockSize: blockSize})
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	snap, err := mem.NewSnapshot()
	require.NoError(t, err)
	s, err := New(snap, Options{Bits: bits})
	require.NoError(t, err)
	return s
}

func TestWideAlphabetNeedsLargeBlocks(t *testing.T) {
	mem, err := store.Open(store.Options{BlockSize: 1024})
	require.NoError(t, err)
	defer mem.Close()
	snap, err := mem.NewSnapshot()
	require.NoError(t, err)
	_, err = New(snap, Options{})
	require.ErrorIs(t, err, btree.ErrInvalidConfig)
}

func TestSmallAlphabet(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	s := newSequence(t, 256, 2)
	require.Equal(t, 4, s.Alphabet())
	require.NoError(t, s.Append(0, 1, 2, 3, 3, 2, 1, 0))
	require.NoError(t, s.InsertAt(4, 1))
	require.ErrorIs(t, s.Append(4), ErrSymbol)
	got, err := s.Symbols(0, s.Len())
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2, 3, 1, 3, 2, 1, 0}, got)
	r, err := s.Rank(5, 1)
	require.NoError(t, err)
	require.Equal(t, 2, r)
	pos, ok, err := s.Select(2, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, pos)
	_, ok, err = s.Select(3, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, s.Remove(1, 4))
	got, err = s.Symbols(0, s.Len())
	require.NoError(t, err)
	require.Equal(t, []byte{0, 3, 2, 1, 0}, got)
	c, err := s.Count(0)
	require.NoError(t, err)
	require.Equal(t, 2, c)
}

// Scenario B: rank against a naive computation, select inverts rank.
func TestRankSelectScenario(t *testing.T) {
	n, queries := 1000000, 10000
	if testing.Short() {
		n, queries = 60000, 1000
	}
	s := newSequence(t, 32768, 8)
	rnd := rand.New(rand.NewSource(1))
	symbols := make([]byte, n)
	occ := make([][]int, 256)
	for i := range symbols {
		symbols[i] = byte(rnd.Intn(256))
		occ[symbols[i]] = append(occ[symbols[i]], i)
	}
	const batch = 100000
	for from := 0; from < n; from += batch {
		require.NoError(t, s.Append(symbols[from:min(from+batch, n)]...))
	}
	require.Equal(t, n, s.Len())
	require.NoError(t, s.Tree().Check())
	for q := 0; q < queries; q++ {
		pos, sym := rnd.Intn(n), rnd.Intn(256)
		want := sort.SearchInts(occ[sym], pos)
		got, err := s.Rank(pos, sym)
		require.NoError(t, err)
		require.Equal(t, want, got, "rank(%d, %d)", pos, sym)
		// select inverts rank at positions holding the symbol
		own := int(symbols[pos])
		r, err := s.Rank(pos, own)
		require.NoError(t, err)
		p, ok, err := s.Select(r, own)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, pos, p, "select(rank(%d, %d))", pos, own)
		at, err := s.At(pos)
		require.NoError(t, err)
		require.Equal(t, symbols[pos], at)
	}
}
