package btree_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/store"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected store failure")

// failingStore wraps a block store and fails its failAt-th write call. It
// also counts in-place write announcements.
type failingStore struct {
	btree.BlockStore
	calls, failAt int
	updates       int
}

func (s *failingStore) fail(op string) error {
	s.calls++
	if s.calls == s.failAt {
		return fmt.Errorf("%s, call %d: %w", op, s.calls, errInjected)
	}
	return nil
}

func (s *failingStore) Update(n btree.Node) error {
	s.updates++
	if err := s.fail("update"); err != nil {
		return err
	}
	return s.BlockStore.Update(n)
}

func (s *failingStore) CloneBlock(id btree.BlockID) (btree.Node, error) {
	if err := s.fail("clone"); err != nil {
		return nil, err
	}
	return s.BlockStore.CloneBlock(id)
}

func (s *failingStore) CreateNode(kind *btree.NodeKind, level int, root bool) (btree.Node, error) {
	if err := s.fail("create"); err != nil {
		return nil, err
	}
	return s.BlockStore.CreateNode(kind, level, root)
}

func (s *failingStore) RefBlock(id btree.BlockID) error {
	if err := s.fail("ref"); err != nil {
		return err
	}
	return s.BlockStore.RefBlock(id)
}

func (s *failingStore) UnrefBlock(id btree.BlockID) error {
	if err := s.fail("unref"); err != nil {
		return err
	}
	return s.BlockStore.UnrefBlock(id)
}

func treeValues(t *testing.T, tree *btree.Tree) []uint64 {
	t.Helper()
	var v []uint64
	require.NoError(t, tree.ForEachEntry(func(_ int, e btree.Entry) bool {
		v = append(v, e[0])
		return true
	}))
	return v
}

// verifyShared checks trees sharing the arena of mem: all live blocks are
// reachable from one of the roots and carry one reference per distinct
// parent block plus one per root slot.
func verifyShared(t *testing.T, mem *store.Memory, trees ...*btree.Tree) {
	t.Helper()
	nodes := make(map[btree.BlockID]btree.Node)
	parents := make(map[btree.BlockID]int)
	for _, tree := range trees {
		require.NoError(t, tree.Check())
		require.NoError(t, tree.Walk(func(n btree.Node, _ int) bool {
			nodes[n.Header().ID] = n
			return true
		}))
		parents[tree.RootID()]++
	}
	for _, n := range nodes {
		for _, c := range n.Children() {
			parents[c]++
		}
	}
	require.Equal(t, len(nodes), mem.LiveBlocks(), "live blocks not reachable from any root")
	for id := range nodes {
		require.Equal(t, parents[id], mem.RefCount(id), "reference count of block %d", id)
	}
}

// sharedFixture seals a tree of full leaves and opens a writable branch of it
// through a failing store.
func sharedFixture(t *testing.T, n int) (*fixture, *btree.Tree, *failingStore) {
	t.Helper()
	f := newFixture(t, vectorLayout, testBlockSize)
	k, err := f.tree.LoadSlice(0, batch(0, n))
	require.NoError(t, err)
	require.Equal(t, n, k)
	f.verify(t)
	require.NoError(t, f.snap.Seal())
	child, err := f.mem.Branch(f.snap)
	require.NoError(t, err)
	fs := &failingStore{BlockStore: child}
	tree, err := btree.New(fs, f.tree.Schema(), btree.Config{})
	require.NoError(t, err)
	return f, tree, fs
}

func TestStoreFailureMidMutationRollsBack(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "streamtree")
	defer teardown()
	//
	const size = 648 // 12 full leaves
	cases := []struct {
		name string
		op   func(*btree.Tree) error
		want []uint64
	}{
		{"insert-into-full-leaf", func(tree *btree.Tree) error {
			return tree.InsertAt(300, btree.Entry{7})
		}, expected(batch(0, size), 300, []btree.Entry{{7}})},
		{"insert-front", func(tree *btree.Tree) error {
			return tree.InsertAt(0, btree.Entry{7})
		}, expected(batch(0, size), 0, []btree.Entry{{7}})},
		{"remove-underflow", func(tree *btree.Tree) error {
			return tree.RemoveRange(10, 40)
		}, append(entryValues(batch(0, 10)), entryValues(batch(50, size-50))...)},
		{"remove-range", func(tree *btree.Tree) error {
			return tree.RemoveRange(40, 500)
		}, append(entryValues(batch(0, 40)), entryValues(batch(540, size-540))...)},
		{"load-slice", func(tree *btree.Tree) error {
			_, err := tree.LoadSlice(250, batch(10000, 400))
			return err
		}, expected(batch(0, size), 250, batch(10000, 400))},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f, tree, fs := sharedFixture(t, size)
			before := entryValues(batch(0, size))
			failAt := 1
			for ; ; failAt++ {
				fs.calls, fs.failAt = 0, failAt
				err := c.op(tree)
				if err == nil {
					break
				}
				require.ErrorIs(t, err, errInjected, "failing call %d", failAt)
				require.Equal(t, before, treeValues(t, tree), "contents after failing call %d", failAt)
				verifyShared(t, f.mem, f.tree, tree)
				require.Less(t, failAt, 5000, "mutation never completes")
			}
			require.Greater(t, failAt, 1, "no store call was failed")
			require.Equal(t, c.want, treeValues(t, tree))
			verifyShared(t, f.mem, f.tree, tree)
			require.Equal(t, before, f.values(t, 0), "sealed parent changed")
		})
	}
}

func TestRandomStoreFailures(t *testing.T) {
	f, tree, fs := sharedFixture(t, 648)
	ref := entryValues(batch(0, 648))
	rnd := rand.New(rand.NewSource(11))
	for round := 0; round < 200; round++ {
		fs.calls, fs.failAt = 0, 1+rnd.Intn(40)
		var err error
		var next []uint64
		switch pos := rnd.Intn(len(ref) + 1); rnd.Intn(3) {
		case 0:
			v := uint64(rnd.Intn(1000))
			err = tree.InsertAt(pos, btree.Entry{v})
			next = expected(valuesToEntries(ref), pos, []btree.Entry{{v}})
		case 1:
			n := min(rnd.Intn(200), len(ref)-pos)
			err = tree.RemoveRange(pos, n)
			next = append(append([]uint64(nil), ref[:pos]...), ref[pos+n:]...)
		default:
			b := batch(20000+round*100, 1+rnd.Intn(150))
			_, err = tree.LoadSlice(pos, b)
			next = expected(valuesToEntries(ref), pos, b)
		}
		if err == nil {
			ref = next
		} else {
			require.ErrorIs(t, err, errInjected)
		}
		require.Equal(t, ref, treeValues(t, tree), "round %d", round)
		if round%20 == 0 {
			verifyShared(t, f.mem, f.tree, tree)
		}
	}
	verifyShared(t, f.mem, f.tree, tree)
}

func valuesToEntries(v []uint64) []btree.Entry {
	entries := make([]btree.Entry, len(v))
	for i, x := range v {
		entries[i] = btree.Entry{x}
	}
	return entries
}

func TestCheckDetectsCorruptAggregate(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(500))
	require.Greater(t, f.tree.Height(), 2)
	it, err := f.tree.Seek(300)
	require.NoError(t, err)
	e := it.Path().Branch(1).EntryAt(0)
	e[0][1]++
	if err := f.tree.Check(); !errors.Is(err, btree.ErrStructuralCorruption) {
		t.Fatalf("expected ErrStructuralCorruption for a stale aggregate, got %v", err)
	}
	e[0][1]--
	f.verify(t)
}

func TestCheckDetectsMisplacedRootFlag(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(200))
	it, err := f.tree.Seek(100)
	require.NoError(t, err)
	h := it.Path().Leaf().Header()
	h.Root = true
	if err := f.tree.Check(); !errors.Is(err, btree.ErrStructuralCorruption) {
		t.Fatalf("expected ErrStructuralCorruption for an inner root flag, got %v", err)
	}
	h.Root = false
	f.verify(t)
}

func TestCheckDetectsRedundantRoot(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	f.appendAll(t, vector(20))
	it, err := f.tree.Seek(0)
	require.NoError(t, err)
	p := it.Path()
	require.NoError(t, f.tree.NewRoot(p))
	require.Equal(t, 2, f.tree.Height())
	if err := f.tree.Check(); !errors.Is(err, btree.ErrStructuralCorruption) {
		t.Fatalf("expected ErrStructuralCorruption for a root with a single child, got %v", err)
	}
	require.NoError(t, f.tree.RemoveRedundantRoot(p))
	require.Equal(t, 1, f.tree.Height())
	f.verify(t)
	require.Equal(t, vector2values(20), f.values(t, 0))
}

func TestRemoveRangeDetachesSubtrees(t *testing.T) {
	for _, profile := range []store.Profile{store.COW, store.InPlace} {
		t.Run(profile.String(), func(t *testing.T) {
			mem, err := store.Open(store.Options{BlockSize: testBlockSize, Profile: profile})
			require.NoError(t, err)
			t.Cleanup(mem.Close)
			schema, err := mem.Registry().Register(vectorLayout)
			require.NoError(t, err)
			snap, err := mem.NewSnapshot()
			require.NoError(t, err)
			fs := &failingStore{BlockStore: snap}
			tree, err := btree.New(fs, schema, btree.Config{})
			require.NoError(t, err)
			const size = 60000
			_, err = tree.LoadSlice(0, batch(0, size))
			require.NoError(t, err)
			leaves, err := tree.Leaves()
			require.NoError(t, err)
			require.Greater(t, leaves, 1000)
			f := &fixture{mem: mem, snap: snap, tree: tree}
			//
			fs.updates = 0
			require.NoError(t, tree.RemoveRange(100, 59000))
			// cutting row by row writes each of the ~1090 leaves at least once
			require.Less(t, fs.updates, 1000, "in-place writes for a large range removal")
			f.verify(t)
			want := append(entryValues(batch(0, 100)), entryValues(batch(59100, size-59100))...)
			require.Equal(t, want, f.values(t, 0))
			//
			require.NoError(t, tree.RemoveRange(0, tree.Len()))
			require.Equal(t, 1, tree.Height())
			f.verify(t)
		})
	}
}

func TestRemoveRangeAgainstSlice(t *testing.T) {
	f := newFixture(t, vectorLayout, testBlockSize)
	_, err := f.tree.LoadSlice(0, batch(0, 5000))
	require.NoError(t, err)
	ref := entryValues(batch(0, 5000))
	rnd := rand.New(rand.NewSource(5))
	for len(ref) > 0 {
		pos := rnd.Intn(len(ref))
		n := min(1+rnd.Intn(900), len(ref)-pos)
		require.NoError(t, f.tree.RemoveRange(pos, n))
		ref = append(ref[:pos], ref[pos+n:]...)
		f.verify(t)
		require.Equal(t, len(ref), f.tree.Len())
		if len(ref) > 0 {
			require.Equal(t, ref, f.values(t, 0))
		}
	}
	require.Equal(t, 1, f.tree.Height())
}
