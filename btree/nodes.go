package btree

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/stream"
)

// BlockID identifies a block at the store. The zero value means "no block".
type BlockID uint64

// NoBlock is the zero BlockID.
const NoBlock BlockID = 0

// SnapshotID identifies the snapshot a block was created in.
type SnapshotID uint64

// nodeHeaderBytes is the fixed packed overhead of a node inside its block.
const nodeHeaderBytes = 32

// NodeHeader is the metadata every node carries.
type NodeHeader struct {
	ID        BlockID
	Tag       Tag
	Level     int // 0 for leaves
	Root      bool
	Snapshot  SnapshotID
	Dirty     bool
	BlockSize int
}

// Node is either a *LeafNode or a *BranchNode.
type Node interface {
	Header() *NodeHeader
	IsLeaf() bool
	// Size is the number of entries of a leaf or the number of children of
	// a branch.
	Size() int
	// Children returns the child block ids of a branch, nil for a leaf.
	Children() []BlockID
	// ByteSize is the packed size of the node content.
	ByteSize() int
	// Clone returns a deep copy with an identical header.
	Clone() Node

	sealed()
}

// Entry is one row of a leaf: one value per stream, in layout order.
type Entry []uint64

// BranchNodeEntry is the aggregate of a subtree, one summary per leaf stream.
type BranchNodeEntry []stream.Summary

// Count returns the number of leaf entries of the subtree.
func (e BranchNodeEntry) Count() int {
	if len(e) == 0 {
		return 0
	}
	return int(e[0].Count())
}

// Equal compares two entries stream by stream.
func (e BranchNodeEntry) Equal(other BranchNodeEntry) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if !e[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (e BranchNodeEntry) Clone() BranchNodeEntry {
	c := make(BranchNodeEntry, len(e))
	for i, s := range e {
		c[i] = s.Clone()
	}
	return c
}

// --- Leaves ----------------------------------------------------------------

// LeafNode holds the row-aligned streams of a chunk of entries.
type LeafNode struct {
	NodeHeader
	schema  *Schema
	streams []stream.Stream
}

var _ Node = (*LeafNode)(nil)

func (l *LeafNode) sealed() {}

// Header returns the node metadata.
func (l *LeafNode) Header() *NodeHeader { return &l.NodeHeader }

// IsLeaf is true.
func (l *LeafNode) IsLeaf() bool { return true }

// Children is nil for leaves.
func (l *LeafNode) Children() []BlockID { return nil }

// Size returns the number of entries.
func (l *LeafNode) Size() int { return l.streams[0].Size() }

// Schema returns the layout schema of the leaf.
func (l *LeafNode) Schema() *Schema { return l.schema }

// ByteSize returns the packed size of header and streams.
func (l *LeafNode) ByteSize() int {
	size := nodeHeaderBytes
	for _, s := range l.streams {
		size += s.ByteSize()
	}
	return size
}

// Stream returns stream i. Callers must not mutate it.
func (l *LeafNode) Stream(i int) stream.Stream { return l.streams[i] }

// Value returns the value of stream s at row i.
func (l *LeafNode) Value(s, i int) uint64 { return l.streams[s].Access(i) }

// Entry returns row i.
func (l *LeafNode) Entry(i int) Entry {
	e := make(Entry, len(l.streams))
	for s, st := range l.streams {
		e[s] = st.Access(i)
	}
	return e
}

// Clone returns a deep copy of the leaf.
func (l *LeafNode) Clone() Node {
	c := &LeafNode{NodeHeader: l.NodeHeader, schema: l.schema}
	c.streams = make([]stream.Stream, len(l.streams))
	for i, s := range l.streams {
		c.streams[i] = s.Clone()
	}
	return c
}

// Append adds an entry at the end of a leaf. It is meant for LeafProviders
// filling freshly created leaves and fails with ErrCapacity if the entry does
// not fit into the block. Append leaves the stream indexes stale; bulk
// insertion reindexes the leaf once it is filled.
func (l *LeafNode) Append(e Entry) error {
	if err := l.schema.Layout.checkEntry(e); err != nil {
		return err
	}
	at := l.Size()
	for _, s := range l.streams {
		s.InsertSpace(at, 1)
	}
	if l.ByteSize() > l.BlockSize {
		for _, s := range l.streams {
			s.RemoveSpace(at, 1)
		}
		return ErrCapacity
	}
	for i, s := range l.streams {
		s.Set(at, e[i])
	}
	return nil
}

// insert places e at row idx, leaving the leaf untouched if it does not fit.
func (l *LeafNode) insert(idx int, e Entry) error {
	if err := l.schema.Layout.checkEntry(e); err != nil {
		return err
	}
	if idx < 0 || idx > l.Size() {
		return errors.Wrapf(ErrIndexOutOfBounds, "leaf insert at %d of %d", idx, l.Size())
	}
	for _, s := range l.streams {
		s.InsertSpace(idx, 1)
	}
	if l.ByteSize() > l.BlockSize {
		for _, s := range l.streams {
			s.RemoveSpace(idx, 1)
		}
		l.reindex()
		return ErrCapacity
	}
	for i, s := range l.streams {
		s.Set(idx, e[i])
	}
	l.reindex()
	return nil
}

func (l *LeafNode) set(idx int, e Entry) error {
	if err := l.schema.Layout.checkEntry(e); err != nil {
		return err
	}
	if idx < 0 || idx >= l.Size() {
		return errors.Wrapf(ErrIndexOutOfBounds, "leaf update at %d of %d", idx, l.Size())
	}
	for i, s := range l.streams {
		s.Set(idx, e[i])
	}
	l.reindex()
	return nil
}

func (l *LeafNode) remove(from, n int) {
	assert(from >= 0 && n >= 0 && from+n <= l.Size(), "leaf remove out of range")
	for _, s := range l.streams {
		s.RemoveSpace(from, n)
	}
	l.reindex()
}

func (l *LeafNode) reindex() {
	for _, s := range l.streams {
		s.Reindex()
	}
}

// splitTo moves rows [at,Size()) to the front of right.
func (l *LeafNode) splitTo(right *LeafNode, at int) error {
	for i, s := range l.streams {
		if err := s.SplitTo(right.streams[i], at); err != nil {
			return err
		}
	}
	l.reindex()
	right.reindex()
	return nil
}

// mergeWith appends all rows of other.
func (l *LeafNode) mergeWith(other *LeafNode) error {
	for i, s := range l.streams {
		if err := s.MergeWith(other.streams[i]); err != nil {
			return err
		}
	}
	l.reindex()
	return nil
}

// takeFront moves the first k rows of src to the end of l.
func (l *LeafNode) takeFront(src *LeafNode, k int) error {
	assert(k >= 0 && k <= src.Size(), "leaf takeFront out of range")
	for i, s := range l.streams {
		head := src.streams[i].Clone()
		head.RemoveSpace(k, head.Size()-k)
		if err := s.MergeWith(head); err != nil {
			return err
		}
		src.streams[i].RemoveSpace(0, k)
	}
	l.reindex()
	src.reindex()
	return nil
}

// summary aggregates all streams of the leaf.
func (l *LeafNode) summary() BranchNodeEntry {
	e := make(BranchNodeEntry, len(l.streams))
	for i, s := range l.streams {
		e[i] = s.Summary()
	}
	return e
}

// summaryRange aggregates rows [from,to).
func (l *LeafNode) summaryRange(from, to int) BranchNodeEntry {
	e := make(BranchNodeEntry, len(l.streams))
	for i, s := range l.streams {
		e[i] = s.SummaryRange(from, to)
	}
	return e
}

// --- Branches --------------------------------------------------------------

// BranchNode holds child references and one aggregate per child.
type BranchNode struct {
	NodeHeader
	schema   *Schema
	children []BlockID
	entries  []BranchNodeEntry
}

var _ Node = (*BranchNode)(nil)

func (b *BranchNode) sealed() {}

// Header returns the node metadata.
func (b *BranchNode) Header() *NodeHeader { return &b.NodeHeader }

// IsLeaf is false.
func (b *BranchNode) IsLeaf() bool { return false }

// Size returns the number of children.
func (b *BranchNode) Size() int { return len(b.children) }

// Schema returns the layout schema of the branch.
func (b *BranchNode) Schema() *Schema { return b.schema }

// Children returns the child ids. Callers must not mutate the slice.
func (b *BranchNode) Children() []BlockID { return b.children }

// Child returns the id of child i.
func (b *BranchNode) Child(i int) BlockID { return b.children[i] }

// EntryAt returns the aggregate of child i. Callers must not mutate it.
func (b *BranchNode) EntryAt(i int) BranchNodeEntry { return b.entries[i] }

// ByteSize returns the packed size of header, child ids and aggregates.
func (b *BranchNode) ByteSize() int {
	return nodeHeaderBytes + len(b.children)*b.schema.childBytes()
}

// Clone returns a deep copy of the branch.
func (b *BranchNode) Clone() Node {
	c := &BranchNode{NodeHeader: b.NodeHeader, schema: b.schema}
	c.children = append([]BlockID(nil), b.children...)
	c.entries = make([]BranchNodeEntry, len(b.entries))
	for i, e := range b.entries {
		c.entries[i] = e.Clone()
	}
	return c
}

func (b *BranchNode) insertChild(at int, id BlockID, e BranchNodeEntry) {
	assert(at >= 0 && at <= len(b.children), "branch insertChild out of range")
	b.children = append(b.children, NoBlock)
	copy(b.children[at+1:], b.children[at:])
	b.children[at] = id
	b.entries = append(b.entries, nil)
	copy(b.entries[at+1:], b.entries[at:])
	b.entries[at] = e
}

func (b *BranchNode) removeChild(at int) BlockID {
	assert(at >= 0 && at < len(b.children), "branch removeChild out of range")
	id := b.children[at]
	b.children = append(b.children[:at], b.children[at+1:]...)
	b.entries = append(b.entries[:at], b.entries[at+1:]...)
	return id
}

// removeChildren detaches children [from,to) and returns their ids.
func (b *BranchNode) removeChildren(from, to int) []BlockID {
	assert(from >= 0 && from <= to && to <= len(b.children), "branch removeChildren out of range")
	ids := append([]BlockID(nil), b.children[from:to]...)
	b.children = append(b.children[:from], b.children[to:]...)
	b.entries = append(b.entries[:from], b.entries[to:]...)
	return ids
}

// splitTo moves children [at,Size()) to the front of right.
func (b *BranchNode) splitTo(right *BranchNode, at int) {
	right.children = append(append([]BlockID(nil), b.children[at:]...), right.children...)
	right.entries = append(append([]BranchNodeEntry(nil), b.entries[at:]...), right.entries...)
	b.children = b.children[:at]
	b.entries = b.entries[:at]
}

// mergeWith appends all children of other.
func (b *BranchNode) mergeWith(other *BranchNode) {
	b.children = append(b.children, other.children...)
	for _, e := range other.entries {
		b.entries = append(b.entries, e.Clone())
	}
}

// takeFront moves the first k children of src to the end of b.
func (b *BranchNode) takeFront(src *BranchNode, k int) {
	b.children = append(b.children, src.children[:k]...)
	b.entries = append(b.entries, src.entries[:k]...)
	src.children = append(src.children[:0:0], src.children[k:]...)
	src.entries = append(src.entries[:0:0], src.entries[k:]...)
}

// summary combines the aggregates of all children.
func (b *BranchNode) summary() BranchNodeEntry {
	return b.summaryRange(0, len(b.entries))
}

// summaryRange combines the aggregates of children [from,to).
func (b *BranchNode) summaryRange(from, to int) BranchNodeEntry {
	descs := b.schema.Layout.Streams
	e := make(BranchNodeEntry, len(descs))
	for i, d := range descs {
		e[i] = stream.Zero(d)
	}
	for c := from; c < to; c++ {
		for i, d := range descs {
			stream.Combine(d, e[i], b.entries[c][i])
		}
	}
	return e
}

// count returns the number of leaf entries below children [from,to).
func (b *BranchNode) count(from, to int) int {
	n := 0
	for c := from; c < to; c++ {
		n += b.entries[c].Count()
	}
	return n
}
