package btree_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/store"
	"github.com/npillmayer/streamtree/stream"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	mem, err := store.Open(store.Options{BlockSize: 256})
	require.NoError(t, err)
	defer mem.Close()
	wide := btree.Layout{Name: "wide", Streams: []stream.Descriptor{{Kind: stream.Symbol, Bits: 8}}}
	schema, err := mem.Registry().Register(wide)
	require.NoError(t, err)
	snap, err := mem.NewSnapshot()
	require.NoError(t, err)
	// 257 summary slots per child do not fit 4 children into 256 bytes
	if _, err := btree.New(snap, schema, btree.Config{}); !errors.Is(err, btree.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for a layout too wide for the block size, got %v", err)
	}
	if _, err := btree.New(nil, schema, btree.Config{}); !errors.Is(err, btree.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig without a store, got %v", err)
	}
}

func TestNewRejectsForeignLayout(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	other := btree.NewRegistry()
	schema, err := other.Register(mapLayout)
	require.NoError(t, err)
	if _, err := btree.New(f.snap, schema, btree.Config{Name: "other"}); !errors.Is(err, btree.ErrDispatchMismatch) {
		t.Fatalf("expected ErrDispatchMismatch for a layout of another registry, got %v", err)
	}
}

func TestEmptyTree(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	require.Equal(t, 0, f.tree.Len())
	require.Equal(t, 1, f.tree.Height())
	f.verify(t)
	it, err := f.tree.Begin()
	require.NoError(t, err)
	require.True(t, it.IsAfterEnd())
	_, ok := it.Entry()
	require.False(t, ok)
	if _, err := f.tree.Seek(1); !errors.Is(err, btree.ErrIndexOutOfBounds) {
		t.Fatalf("expected ErrIndexOutOfBounds seeking past the end, got %v", err)
	}
}

func TestAppendGrowsTree(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(2000))
	require.Equal(t, 2000, f.tree.Len())
	require.Greater(t, f.tree.Height(), 2)
	f.verify(t)
	require.Equal(t, vector2values(2000), f.values(t, 0))
	sum, err := f.tree.Summary()
	require.NoError(t, err)
	require.Equal(t, uint64(1999*2000/2), sum[0].Value())
}

func vector2values(n int) []uint64 {
	v := make([]uint64, n)
	for i := range v {
		v[i] = uint64(i)
	}
	return v
}

func TestRandomInsertRemoveAgainstSlice(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	f := newFixture(t, vectorLayout, testBlockSize)
	rnd := rand.New(rand.NewSource(7))
	var ref []uint64
	for round := 0; round < 3000; round++ {
		if len(ref) > 0 && rnd.Intn(3) == 0 {
			pos := rnd.Intn(len(ref))
			require.NoError(t, f.tree.RemoveAt(pos))
			ref = append(ref[:pos], ref[pos+1:]...)
		} else {
			pos := rnd.Intn(len(ref) + 1)
			v := uint64(rnd.Intn(1000))
			require.NoError(t, f.tree.InsertAt(pos, btree.Entry{v}))
			ref = append(ref, 0)
			copy(ref[pos+1:], ref[pos:])
			ref[pos] = v
		}
		if round%500 == 0 {
			f.verify(t)
		}
	}
	f.verify(t)
	require.Equal(t, ref, f.values(t, 0))
}

func TestRemoveRange(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(1000))
	require.NoError(t, f.tree.RemoveRange(100, 700))
	require.Equal(t, 300, f.tree.Len())
	f.verify(t)
	got := f.values(t, 0)
	require.Equal(t, uint64(99), got[99])
	require.Equal(t, uint64(800), got[100])
	if err := f.tree.RemoveRange(250, 51); !errors.Is(err, btree.ErrIndexOutOfBounds) {
		t.Fatalf("expected ErrIndexOutOfBounds for a range past the end, got %v", err)
	}
	require.Equal(t, 300, f.tree.Len())
}

func TestRemoveAllCollapsesRoot(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(600))
	require.Greater(t, f.tree.Height(), 1)
	for f.tree.Len() > 0 {
		require.NoError(t, f.tree.RemoveAt(f.tree.Len()/2))
	}
	require.Equal(t, 1, f.tree.Height())
	f.verify(t)
	require.Equal(t, 1, f.mem.LiveBlocks())
}

func TestRejectsInvalidEntries(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(10))
	if err := f.tree.Append(btree.Entry{1, 2}); !errors.Is(err, btree.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for too many values, got %v", err)
	}
	if err := f.tree.Append(btree.Entry{1 << 40}); !errors.Is(err, btree.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for a value wider than the stream, got %v", err)
	}
	require.Equal(t, 10, f.tree.Len())
	f.verify(t)
}

// Scenario C: a leaf split adds exactly one leaf, a merge removes exactly one.
func TestSplitAndMergeLeafCounts(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	f := newFixture(t, vectorLayout, testBlockSize)
	capacity := f.tree.Schema().LeafCapacity(testBlockSize)
	f.appendAll(t, vector(capacity))
	leaves, err := f.tree.Leaves()
	require.NoError(t, err)
	require.Equal(t, 1, leaves)
	//
	require.NoError(t, f.tree.Append(btree.Entry{1}))
	leaves, err = f.tree.Leaves()
	require.NoError(t, err)
	require.Equal(t, 2, leaves)
	require.Equal(t, capacity+1, f.tree.Len())
	f.verify(t)
	//
	for {
		before, err := f.tree.Leaves()
		require.NoError(t, err)
		n := f.tree.Len()
		require.NoError(t, f.tree.RemoveAt(0))
		after, err := f.tree.Leaves()
		require.NoError(t, err)
		require.Equal(t, n-1, f.tree.Len())
		if after != before {
			require.Equal(t, before-1, after)
			break
		}
	}
	f.verify(t)
}

func TestUpdateAndIteratorMutations(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(300))
	it, err := f.tree.Seek(120)
	require.NoError(t, err)
	require.NoError(t, f.tree.Update(it, btree.Entry{5000}))
	e, ok := it.Entry()
	require.True(t, ok)
	require.Equal(t, uint64(5000), e[0])
	//
	require.NoError(t, f.tree.Insert(it, btree.Entry{6000}))
	require.Equal(t, 120, it.EntryOffset())
	require.NoError(t, f.tree.Remove(it))
	require.Equal(t, 120, it.EntryOffset())
	e, ok = it.Entry()
	require.True(t, ok)
	require.Equal(t, uint64(5000), e[0])
	f.verify(t)
}

func TestStaleIterator(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(100))
	a, err := f.tree.Seek(10)
	require.NoError(t, err)
	b, err := f.tree.Seek(20)
	require.NoError(t, err)
	require.NoError(t, f.tree.Remove(b))
	if err := f.tree.Remove(a); !errors.Is(err, btree.ErrStaleIterator) {
		t.Fatalf("expected ErrStaleIterator after a foreign mutation, got %v", err)
	}
	if err := a.Next(1); !errors.Is(err, btree.ErrStaleIterator) {
		t.Fatalf("expected ErrStaleIterator moving a stale iterator, got %v", err)
	}
	require.False(t, a.Valid())
}

func TestFailedMutationRollsBack(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(500))
	require.NoError(t, f.snap.Seal())
	live := f.mem.LiveBlocks()
	if err := f.tree.RemoveAt(10); !errors.Is(err, btree.ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
	require.Equal(t, live, f.mem.LiveBlocks())
	require.Equal(t, 500, f.tree.Len())
	f.verify(t)
}

func TestToDot(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(200))
	var sb strings.Builder
	require.NoError(t, btree.ToDot(f.tree, &sb))
	require.Contains(t, sb.String(), "strict digraph {")
	require.Contains(t, sb.String(), "->")
}
