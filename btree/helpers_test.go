package btree_test

import (
	"testing"

	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/store"
	"github.com/npillmayer/streamtree/stream"
	"github.com/stretchr/testify/require"
)

// testBlockSize gives 54 entries per leaf and 9 children per branch for the
// vector layout.
const testBlockSize = 256

var (
	vectorLayout = btree.Layout{
		Name:    "vector",
		Streams: []stream.Descriptor{{Kind: stream.Sum, Bits: 32}},
	}
	mapLayout = btree.Layout{
		Name: "map",
		Streams: []stream.Descriptor{
			{Kind: stream.Key, Bits: 32},
			{Kind: stream.Array, Bits: 32},
		},
	}
	symbolLayout = btree.Layout{
		Name:    "symbols",
		Streams: []stream.Descriptor{{Kind: stream.Symbol, Bits: 2}},
	}
)

type fixture struct {
	mem  *store.Memory
	snap *store.Snapshot
	tree *btree.Tree
}

func newFixture(t *testing.T, layout btree.Layout, blockSize int) *fixture {
	t.Helper()
	mem, err := store.Open(store.Options{BlockSize: blockSize})
	require.NoError(t, err)
	t.Cleanup(mem.Close)
	schema, err := mem.Registry().Register(layout)
	require.NoError(t, err)
	snap, err := mem.NewSnapshot()
	require.NoError(t, err)
	tree, err := btree.New(snap, schema, btree.Config{})
	require.NoError(t, err)
	return &fixture{mem: mem, snap: snap, tree: tree}
}

func vector(n int) []btree.Entry {
	entries := make([]btree.Entry, n)
	for i := range entries {
		entries[i] = btree.Entry{uint64(i)}
	}
	return entries
}

func (f *fixture) appendAll(t *testing.T, entries []btree.Entry) {
	t.Helper()
	for _, e := range entries {
		require.NoError(t, f.tree.Append(e))
	}
}

// values collects stream s of all entries in order.
func (f *fixture) values(t *testing.T, s int) []uint64 {
	t.Helper()
	var v []uint64
	require.NoError(t, f.tree.ForEachEntry(func(_ int, e btree.Entry) bool {
		v = append(v, e[s])
		return true
	}))
	return v
}

// verify runs the structural checker and compares the arena with what is
// reachable from the root: every live block is reachable and carries one
// reference per parent, plus one for the root.
func (f *fixture) verify(t *testing.T) {
	t.Helper()
	require.NoError(t, f.tree.Check())
	reachable, err := f.tree.Reachable()
	require.NoError(t, err)
	require.Equal(t, len(reachable), f.mem.LiveBlocks(), "live blocks not reachable from the root")
	parents := make(map[btree.BlockID]int)
	require.NoError(t, f.tree.Walk(func(n btree.Node, _ int) bool {
		for _, c := range n.Children() {
			parents[c]++
		}
		return true
	}))
	parents[f.tree.RootID()]++
	for id := range reachable {
		require.Equal(t, parents[id], f.mem.RefCount(id), "reference count of block %d", id)
	}
}
