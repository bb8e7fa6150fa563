package btree

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/kr/pretty"
)

// Iterator is a cursor over the entries of a tree. It points to an entry, to
// the position before the first entry, or to the position after the last.
//
// An iterator is bound to the tree state it was created from. Any mutation
// of the tree not made through the iterator itself makes it stale, and
// mutating calls return ErrStaleIterator for it.
type Iterator struct {
	tree  *Tree
	path  *TreePath
	idx   int
	epoch uint64
	valid bool
	// chunk view cache, bound to chunkID
	chunkID     BlockID
	chunkOffset int
	chunk       *Chunk
}

func newIterator(t *Tree, st *IteratorState) *Iterator {
	it := &Iterator{tree: t}
	it.take(st)
	return it
}

func (it *Iterator) take(st *IteratorState) {
	it.path = st.Path
	it.idx = st.Idx
	it.epoch = it.tree.epoch
	it.valid = true
	it.resetChunk()
}

func (it *Iterator) resetChunk() {
	it.chunkID = NoBlock
	it.chunkOffset = -1
	it.chunk = nil
}

func (it *Iterator) check(t *Tree) error {
	if it == nil || it.tree != t {
		return errors.Wrap(ErrStaleIterator, "iterator belongs to another tree")
	}
	if !it.valid || it.epoch != t.epoch {
		return errors.Wrapf(ErrStaleIterator, "iterator of epoch %d, tree at %d", it.epoch, t.epoch)
	}
	return nil
}

func (it *Iterator) invalidate() {
	it.valid = false
	it.resetChunk()
}

// moved records that a mutation through the iterator left it at row at of
// its (possibly new) leaf.
func (it *Iterator) moved(at int) {
	it.idx = at
	it.epoch = it.tree.epoch
	it.resetChunk()
}

// reseat positions the iterator at global position pos, clamped to the end.
func (it *Iterator) reseat(pos int) error {
	total, err := it.tree.Count()
	if err != nil {
		it.invalidate()
		return err
	}
	fresh, err := it.tree.Seek(min(pos, total))
	if err != nil {
		it.invalidate()
		return err
	}
	*it = *fresh
	return nil
}

// State returns the id of the current leaf and the row inside it.
func (it *Iterator) State() (BlockID, int) {
	return it.LeafID(), it.idx
}

// LeafID returns the id of the current leaf.
func (it *Iterator) LeafID() BlockID { return it.path.Leaf().ID }

// Idx returns the row inside the current leaf.
func (it *Iterator) Idx() int { return it.idx }

// Path returns the path to the current leaf. Callers must not modify it.
func (it *Iterator) Path() *TreePath { return it.path }

// EntryOffset returns the global position of the iterator, -1 before the
// start and Len() after the end.
func (it *Iterator) EntryOffset() int {
	return it.ChunkOffset() + it.idx
}

// ChunkOffset returns the global position of the first entry of the current
// leaf.
func (it *Iterator) ChunkOffset() int {
	id := it.LeafID()
	if it.chunkID != id || it.chunkOffset < 0 {
		it.chunkID = id
		it.chunkOffset = UptreePrefix(it.path).Count()
		it.chunk = nil
	}
	return it.chunkOffset
}

// EntryOffsetInChunk returns the row inside the current leaf.
func (it *Iterator) EntryOffsetInChunk() int { return it.idx }

// ChunkSize returns the number of entries of the current leaf.
func (it *Iterator) ChunkSize() int { return it.path.Leaf().Size() }

// IsBeforeStart reports whether the iterator is before the first entry.
func (it *Iterator) IsBeforeStart() bool { return it.idx < 0 }

// IsAfterEnd reports whether the iterator is after the last entry.
func (it *Iterator) IsAfterEnd() bool { return it.idx >= it.ChunkSize() }

// Valid reports whether the iterator points to an entry of a current tree.
func (it *Iterator) Valid() bool {
	return it.check(it.tree) == nil && !it.IsBeforeStart() && !it.IsAfterEnd()
}

// Next moves n entries forward, stopping after the end. A negative n moves
// backward.
func (it *Iterator) Next(n int) error {
	if n < 0 {
		return it.Prev(-n)
	}
	if err := it.check(it.tree); err != nil {
		return err
	}
	if n == 0 || it.IsAfterEnd() {
		return nil
	}
	return it.ride(&SkipForward{Remaining: n})
}

// Prev moves n entries backward, stopping before the start. A negative n
// moves forward.
func (it *Iterator) Prev(n int) error {
	if n < 0 {
		return it.Next(-n)
	}
	if err := it.check(it.tree); err != nil {
		return err
	}
	if n == 0 || it.IsBeforeStart() {
		return nil
	}
	return it.ride(&SkipBackward{Remaining: n})
}

func (it *Iterator) ride(sh Shuttle) error {
	st := &IteratorState{Path: it.path, Idx: it.idx}
	leaf := it.LeafID()
	var err error
	if sh.Direction() == Forward {
		err = it.tree.RideForward(st, sh)
	} else {
		err = it.tree.RideBackward(st, sh)
	}
	if err != nil {
		it.invalidate()
		return err
	}
	it.idx = st.Idx
	if it.LeafID() != leaf {
		it.resetChunk()
	}
	return nil
}

// NextChunk moves to the first entry of the following leaf. It returns false
// if there is none; the iterator is then after the end.
func (it *Iterator) NextChunk() (bool, error) {
	if err := it.Next(it.ChunkSize() - it.idx); err != nil {
		return false, err
	}
	return !it.IsAfterEnd(), nil
}

// PrevChunk moves to the first entry of the preceding leaf. It returns false
// if there is none; the iterator is then before the start.
func (it *Iterator) PrevChunk() (bool, error) {
	if err := it.Prev(it.idx + 1); err != nil {
		return false, err
	}
	if it.IsBeforeStart() {
		return false, nil
	}
	it.idx = 0
	return true, nil
}

// Entry returns the entry under the iterator.
func (it *Iterator) Entry() (Entry, bool) {
	if !it.Valid() {
		return nil, false
	}
	return it.path.Leaf().Entry(it.idx), true
}

// Value returns value s of the entry under the iterator.
func (it *Iterator) Value(s int) (uint64, bool) {
	if !it.Valid() {
		return 0, false
	}
	return it.path.Leaf().Value(s, it.idx), true
}

// Chunk returns a read-only view of the current leaf.
func (it *Iterator) Chunk() *Chunk {
	off := it.ChunkOffset()
	if it.chunk == nil {
		it.chunk = &Chunk{leaf: it.path.Leaf(), offset: off}
	}
	return it.chunk
}

// Dump writes the iterator state to w.
func (it *Iterator) Dump(w io.Writer) {
	state := struct {
		Path   string
		Leaf   BlockID
		Idx    int
		Offset int
		Size   int
		Stale  bool
	}{
		Path:   it.path.String(),
		Leaf:   it.LeafID(),
		Idx:    it.idx,
		Offset: it.EntryOffset(),
		Size:   it.ChunkSize(),
		Stale:  it.check(it.tree) != nil,
	}
	pretty.Fprintf(w, "%# v\n", state)
	if e, ok := it.Entry(); ok {
		pretty.Fprintf(w, "entry %v\n", []uint64(e))
	}
}

func (it *Iterator) String() string {
	return fmt.Sprintf("iterator{%s idx=%d}", it.path, it.idx)
}

// Chunk is the view of one leaf as seen by an iterator.
type Chunk struct {
	leaf   *LeafNode
	offset int
}

// ID returns the block id of the leaf.
func (c *Chunk) ID() BlockID { return c.leaf.ID }

// Offset returns the global position of the first entry.
func (c *Chunk) Offset() int { return c.offset }

// Len returns the number of entries.
func (c *Chunk) Len() int { return c.leaf.Size() }

// Entry returns row i.
func (c *Chunk) Entry(i int) Entry { return c.leaf.Entry(i) }

// Value returns value s of row i.
func (c *Chunk) Value(s, i int) uint64 { return c.leaf.Value(s, i) }

// Values copies stream s of the chunk into a slice.
func (c *Chunk) Values(s int) []uint64 {
	str := c.leaf.Stream(s)
	v := make([]uint64, str.Size())
	for i := range v {
		v[i] = str.Access(i)
	}
	return v
}
