package btree

import (
	"github.com/cockroachdb/errors"
)

// Tree is a handle on one named tree of a BlockStore snapshot.
//
// A Tree is not safe for concurrent mutation. Readers on committed snapshots
// may share a Tree freely.
type Tree struct {
	cfg    Config
	store  BlockStore
	schema *Schema
	// epoch counts mutations; iterators from an older epoch are stale.
	epoch uint64
}

// New opens the tree named by cfg.Name at store. If it does not exist yet,
// an empty root leaf is created.
func New(store BlockStore, schema *Schema, cfg Config) (*Tree, error) {
	if store == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "block store is required")
	}
	if err := cfg.validate(schema, store.BlockSize()); err != nil {
		return nil, err
	}
	if k, err := store.Registry().Kind(schema.Leaf.Tag); err != nil || k != schema.Leaf {
		return nil, errors.Wrapf(ErrDispatchMismatch, "layout %q not registered at store", schema.Layout.Name)
	}
	t := &Tree{cfg: cfg.normalized(store.BlockSize()), store: store, schema: schema}
	if id := store.Root(t.cfg.Name); id != NoBlock {
		if _, err := t.load(id); err != nil {
			return nil, err
		}
		return t, nil
	}
	err := t.atomically(func() error {
		_, err := t.CreateRootNode(0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Config returns the effective configuration.
func (t *Tree) Config() Config { return t.cfg }

// Schema returns the layout schema of the tree.
func (t *Tree) Schema() *Schema { return t.schema }

// Store returns the block store of the tree.
func (t *Tree) Store() BlockStore { return t.store }

// RootID returns the id of the root block.
func (t *Tree) RootID() BlockID { return t.store.Root(t.cfg.Name) }

func (t *Tree) root() (Node, error) {
	id := t.RootID()
	if id == NoBlock {
		return nil, errors.Wrapf(ErrBlockNotFound, "tree %q has no root", t.cfg.Name)
	}
	return t.load(id)
}

// Summary returns the aggregate of the whole tree.
func (t *Tree) Summary() (BranchNodeEntry, error) {
	r, err := t.root()
	if err != nil {
		return nil, err
	}
	switch n := r.(type) {
	case *LeafNode:
		return n.summary(), nil
	case *BranchNode:
		return n.summary(), nil
	}
	return nil, errors.AssertionFailedf("unknown node type %T", r)
}

// Count returns the number of entries.
func (t *Tree) Count() (int, error) {
	s, err := t.Summary()
	if err != nil {
		return 0, err
	}
	return s.Count(), nil
}

// Len returns the number of entries, or 0 if the root cannot be read.
func (t *Tree) Len() int {
	n, err := t.Count()
	if err != nil {
		tracer().Errorf("tree %q: %v", t.cfg.Name, err)
		return 0
	}
	return n
}

// Height returns the number of levels, 1 for a single root leaf.
func (t *Tree) Height() int {
	r, err := t.root()
	if err != nil {
		return 0
	}
	return r.Header().Level + 1
}

// atomically runs fn inside a store savepoint, rolling back on error.
func (t *Tree) atomically(fn func() error) error {
	sp := t.store.Begin()
	defer func() { t.epoch++ }()
	if err := fn(); err != nil {
		if rerr := t.store.Rollback(sp); rerr != nil {
			return errors.CombineErrors(err, rerr)
		}
		tracer().Debugf("tree %q: rolled back savepoint %d: %v", t.cfg.Name, sp, err)
		return err
	}
	return t.store.Commit(sp)
}

// --- Positional and iterator based operations ------------------------------

// Insert inserts e before the entry the iterator points to (or at the end if
// the iterator is after the end). On success the iterator points to the new
// entry. If the iterator is before the start, e becomes the first entry.
func (t *Tree) Insert(it *Iterator, e Entry) error {
	if err := it.check(t); err != nil {
		return err
	}
	idx := max(it.idx, 0)
	at, err := t.InsertEntry(it.path, idx, e)
	if err != nil {
		it.invalidate()
		return err
	}
	it.moved(at)
	return nil
}

// Remove removes the entry under the iterator. Afterwards the iterator is
// re-seated at the same global position.
func (t *Tree) Remove(it *Iterator) error {
	if err := it.check(t); err != nil {
		return err
	}
	if it.IsBeforeStart() || it.IsAfterEnd() {
		return errors.Wrap(ErrIndexOutOfBounds, "remove at iterator outside of the tree")
	}
	pos := it.EntryOffset()
	if err := t.RemoveEntry(it.path, it.idx); err != nil {
		it.invalidate()
		return err
	}
	return it.reseat(pos)
}

// Update overwrites the entry under the iterator.
func (t *Tree) Update(it *Iterator, e Entry) error {
	if err := it.check(t); err != nil {
		return err
	}
	if it.IsBeforeStart() || it.IsAfterEnd() {
		return errors.Wrap(ErrIndexOutOfBounds, "update at iterator outside of the tree")
	}
	if err := t.UpdateEntry(it.path, it.idx, e); err != nil {
		it.invalidate()
		return err
	}
	it.moved(it.idx)
	return nil
}

// InsertAt inserts e at global position pos, 0 <= pos <= Len().
func (t *Tree) InsertAt(pos int, e Entry) error {
	it, err := t.Seek(pos)
	if err != nil {
		return err
	}
	return t.Insert(it, e)
}

// Append adds e after the last entry.
func (t *Tree) Append(e Entry) error {
	it, err := t.End()
	if err != nil {
		return err
	}
	return t.Insert(it, e)
}

// RemoveAt removes the entry at global position pos.
func (t *Tree) RemoveAt(pos int) error {
	return t.RemoveRange(pos, 1)
}

// RemoveRange removes n entries starting at global position pos. Whole
// subtrees inside the range are detached from the highest branch that holds
// them; only the leaves at both borders are cut row by row.
func (t *Tree) RemoveRange(pos, n int) error {
	total, err := t.Count()
	if err != nil {
		return err
	}
	if pos < 0 || n < 0 || pos+n > total {
		return errors.Wrapf(ErrIndexOutOfBounds, "remove [%d,%d) of %d", pos, pos+n, total)
	}
	return t.atomically(func() error {
		for n > 0 {
			it, err := t.Seek(pos)
			if err != nil {
				return err
			}
			p, leaf := it.path, it.path.Leaf()
			if it.idx > 0 || leaf.Size() > n || p.Height() == 1 {
				k := min(n, leaf.Size()-it.idx)
				if err := t.removeRows(p, it.idx, k); err != nil {
					return err
				}
				n -= k
				continue
			}
			k, err := t.removeSubtrees(p, pos, n)
			if err != nil {
				return err
			}
			n -= k
		}
		return nil
	})
}

// LoadSlice bulk-inserts entries at global position pos.
func (t *Tree) LoadSlice(pos int, entries []Entry) (int, error) {
	it, err := t.Seek(pos)
	if err != nil {
		return 0, err
	}
	return t.InsertBatch(it, NewSliceProvider(entries))
}
