package btree_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/stream"
	"github.com/stretchr/testify/require"
)

func TestFindKeys(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	f := newFixture(t, mapLayout, testBlockSize)
	for k := 0; k < 1000; k++ {
		require.NoError(t, f.tree.Append(btree.Entry{uint64(2 * k), uint64(10 * k)}))
	}
	f.verify(t)
	cases := []struct {
		mode  stream.SearchMode
		key   uint64
		pos   int
		exact bool
	}{
		{stream.GE, 0, 0, true},
		{stream.GE, 501, 251, false},
		{stream.EQ, 500, 250, true},
		{stream.EQ, 501, 251, false},
		{stream.GT, 500, 251, false},
		{stream.GE, 1998, 999, true},
		{stream.GT, 1998, 1000, false},
		{stream.GE, 5000, 1000, false},
	}
	for _, c := range cases {
		it, exact, err := f.tree.Find(0, c.mode, c.key)
		require.NoError(t, err)
		require.Equal(t, c.pos, it.EntryOffset(), "%s %d", c.mode, c.key)
		require.Equal(t, c.exact, exact, "%s %d", c.mode, c.key)
		if c.pos < 1000 {
			v, ok := it.Value(1)
			require.True(t, ok)
			require.Equal(t, uint64(10*c.pos), v)
		} else {
			require.True(t, it.IsAfterEnd())
		}
	}
	if _, _, err := f.tree.Find(1, stream.GE, 3); !errors.Is(err, stream.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch searching an array stream, got %v", err)
	}
}

func TestFindSum(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	entries := make([]btree.Entry, 1000)
	for i := range entries {
		entries[i] = btree.Entry{2}
	}
	f.appendAll(t, entries)
	it, prefix, err := f.tree.FindSum(0, stream.GE, 11)
	require.NoError(t, err)
	require.Equal(t, 5, it.EntryOffset())
	require.Equal(t, uint64(10), prefix)
	it, prefix, err = f.tree.FindSum(0, stream.GE, 1000)
	require.NoError(t, err)
	require.Equal(t, 499, it.EntryOffset())
	require.Equal(t, uint64(998), prefix)
	it, _, err = f.tree.FindSum(0, stream.GT, 1000)
	require.NoError(t, err)
	require.Equal(t, 500, it.EntryOffset())
	it, prefix, err = f.tree.FindSum(0, stream.GE, 2001)
	require.NoError(t, err)
	require.True(t, it.IsAfterEnd())
	require.Equal(t, uint64(2000), prefix)
}

func TestRankAndSelect(t *testing.T) {
	f := newFixture(t, symbolLayout, testBlockSize)
	rnd := rand.New(rand.NewSource(3))
	const n = 5000
	symbols := make([]int, n)
	entries := make([]btree.Entry, n)
	for i := range symbols {
		symbols[i] = rnd.Intn(4)
		entries[i] = btree.Entry{uint64(symbols[i])}
	}
	f.appendAll(t, entries)
	f.verify(t)
	for round := 0; round < 300; round++ {
		pos, sym := rnd.Intn(n+1), rnd.Intn(4)
		want := 0
		for _, s := range symbols[:pos] {
			if s == sym {
				want++
			}
		}
		got, err := f.tree.Rank(0, sym, pos)
		require.NoError(t, err)
		require.Equal(t, want, got, "rank of %d before %d", sym, pos)
		if pos < n && symbols[pos] == sym {
			it, ok, err := f.tree.Select(0, sym, got+1)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, pos, it.EntryOffset())
		}
	}
	total, err := f.tree.Rank(0, 1, n)
	require.NoError(t, err)
	_, ok, err := f.tree.Select(0, 1, total+1)
	require.NoError(t, err)
	require.False(t, ok)
	if _, _, err := f.tree.Select(0, 1, 0); !errors.Is(err, btree.ErrIndexOutOfBounds) {
		t.Fatalf("expected ErrIndexOutOfBounds selecting occurrence 0, got %v", err)
	}
}

func TestNextPrevIdempotence(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(3000))
	rnd := rand.New(rand.NewSource(11))
	for round := 0; round < 500; round++ {
		p := rnd.Intn(3000)
		n := rnd.Intn(3000 - p + 1)
		it, err := f.tree.Seek(p)
		require.NoError(t, err)
		leaf, idx := it.State()
		require.NoError(t, it.Next(n))
		require.Equal(t, p+n, it.EntryOffset())
		require.NoError(t, it.Prev(n))
		l2, i2 := it.State()
		require.Equal(t, leaf, l2, "leaf after next(%d)/prev(%d) from %d", n, n, p)
		require.Equal(t, idx, i2)
		e, ok := it.Entry()
		require.True(t, ok)
		require.Equal(t, uint64(p), e[0])
	}
}

func TestIteratorBounds(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(500))
	it, err := f.tree.Seek(10)
	require.NoError(t, err)
	require.NoError(t, it.Prev(50))
	require.True(t, it.IsBeforeStart())
	require.Equal(t, -1, it.EntryOffset())
	require.NoError(t, it.Next(1))
	e, ok := it.Entry()
	require.True(t, ok)
	require.Equal(t, uint64(0), e[0])
	require.NoError(t, it.Next(10000))
	require.True(t, it.IsAfterEnd())
	require.Equal(t, 500, it.EntryOffset())
	require.NoError(t, it.Prev(1))
	e, ok = it.Entry()
	require.True(t, ok)
	require.Equal(t, uint64(499), e[0])
}

func TestChunkNavigation(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(2500))
	leaves, err := f.tree.Leaves()
	require.NoError(t, err)
	//
	it, err := f.tree.Begin()
	require.NoError(t, err)
	chunks, entries := 1, 0
	for {
		c := it.Chunk()
		require.Equal(t, entries, c.Offset())
		require.Equal(t, entries, it.ChunkOffset())
		require.Equal(t, uint64(entries), c.Value(0, 0))
		entries += c.Len()
		ok, err := it.NextChunk()
		require.NoError(t, err)
		if !ok {
			break
		}
		chunks++
	}
	require.Equal(t, leaves, chunks)
	require.Equal(t, 2500, entries)
	//
	it, err = f.tree.Seek(2499)
	require.NoError(t, err)
	chunks = 1
	for {
		ok, err := it.PrevChunk()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, 0, it.EntryOffsetInChunk())
		chunks++
	}
	require.Equal(t, leaves, chunks)
}

// Positional consistency: chunk offset plus row is the global position.
func TestPositionalConsistency(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(1500))
	require.NoError(t, f.tree.RemoveRange(300, 400))
	want := 0
	require.NoError(t, f.tree.Walk(func(n btree.Node, pos int) bool {
		if !n.IsLeaf() {
			return true
		}
		it, err := f.tree.Seek(pos)
		require.NoError(t, err)
		require.Equal(t, n.Header().ID, it.LeafID())
		require.Equal(t, want, it.ChunkOffset())
		require.Equal(t, 0, it.EntryOffsetInChunk())
		require.Equal(t, pos, btree.UptreePrefix(it.Path()).Count())
		want += n.Size()
		return true
	}))
	require.Equal(t, 1100, want)
}

func TestRideUpPrefix(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(1500))
	require.Greater(t, f.tree.Height(), 2)
	for _, pos := range []int{0, 1, 53, 54, 777, 1499, 1500} {
		it, err := f.tree.Seek(pos)
		require.NoError(t, err)
		sh := &btree.UptreeShuttle{}
		st := &btree.IteratorState{Path: it.Path(), Idx: it.Idx()}
		btree.RideUp(st, sh, true)
		require.Equal(t, pos, sh.Prefix.Count(), "count before %d", pos)
		require.Equal(t, uint64(pos*(pos-1)/2), sh.Prefix[0].Value(), "sum before %d", pos)
		require.Equal(t, it.Path(), st.Path)
		require.Equal(t, it.Idx(), st.Idx)
		//
		chunk := btree.UptreePrefix(it.Path())
		require.Equal(t, it.ChunkOffset(), chunk.Count())
	}
}

func TestIteratorDump(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(100))
	it, err := f.tree.Seek(42)
	require.NoError(t, err)
	var sb strings.Builder
	it.Dump(&sb)
	require.Contains(t, sb.String(), "Offset")
	require.Contains(t, sb.String(), "42")
}
