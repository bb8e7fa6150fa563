package btree

import (
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/stream"
)

// Tag is the runtime type tag of a node. It is derived from a hash of the
// layout signature, so a block written by a binary with a different layout
// will not dispatch.
type Tag uint64

// Layout describes the streams of the leaves of a tree.
type Layout struct {
	Name    string
	Streams []stream.Descriptor
}

func (l Layout) signature() string {
	var b strings.Builder
	b.WriteString(l.Name)
	for _, d := range l.Streams {
		b.WriteByte('|')
		b.WriteString(d.Signature())
	}
	return b.String()
}

func (l Layout) validate() error {
	if len(l.Streams) == 0 {
		return errors.Wrapf(ErrInvalidConfig, "layout %q has no streams", l.Name)
	}
	for i, d := range l.Streams {
		if err := d.Validate(); err != nil {
			return errors.Wrapf(err, "layout %q stream %d", l.Name, i)
		}
	}
	return nil
}

func (l Layout) checkEntry(e Entry) error {
	if len(e) != len(l.Streams) {
		return errors.Wrapf(ErrInvalidEntry, "entry has %d values, layout %q has %d streams",
			len(e), l.Name, len(l.Streams))
	}
	for i, d := range l.Streams {
		if d.Bits < 64 && e[i]>>uint(d.Bits) != 0 {
			return errors.Wrapf(ErrInvalidEntry, "value %d exceeds %d bits of stream %d", e[i], d.Bits, i)
		}
	}
	return nil
}

// NodeKind is one row of the dispatch table: a tag and what it stands for.
type NodeKind struct {
	Tag    Tag
	Leaf   bool
	Schema *Schema
}

// NewNode creates an empty node of this kind with header h. The tag of h is
// overwritten.
func (k *NodeKind) NewNode(h NodeHeader) Node {
	h.Tag = k.Tag
	if k.Leaf {
		l := &LeafNode{NodeHeader: h, schema: k.Schema}
		l.streams = make([]stream.Stream, len(k.Schema.Layout.Streams))
		for i, d := range k.Schema.Layout.Streams {
			l.streams[i] = d.New()
			l.streams[i].Reindex()
		}
		return l
	}
	return &BranchNode{NodeHeader: h, schema: k.Schema}
}

// Schema groups the leaf and branch kinds registered for a layout.
type Schema struct {
	Layout Layout
	Leaf   *NodeKind
	Branch *NodeKind
}

// childBytes is the packed size of one child reference plus its aggregate.
func (s *Schema) childBytes() int {
	width := 0
	for _, d := range s.Layout.Streams {
		width += d.SummaryWidth()
	}
	return 8 + 8*width
}

func (s *Schema) leafBytes(n int) int {
	size := nodeHeaderBytes
	for _, d := range s.Layout.Streams {
		size += d.ByteSize(n)
	}
	return size
}

// LeafCapacity returns the maximum number of entries of a leaf in a block of
// blockSize bytes.
func (s *Schema) LeafCapacity(blockSize int) int {
	lo, hi := 0, blockSize*8
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.leafBytes(mid) <= blockSize {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// MaxChildren returns the maximum fan-out of a branch in a block of
// blockSize bytes.
func (s *Schema) MaxChildren(blockSize int) int {
	if blockSize <= nodeHeaderBytes {
		return 0
	}
	return (blockSize - nodeHeaderBytes) / s.childBytes()
}

// MaxSize returns the capacity of node n: entries for leaves, children for
// branches.
func (s *Schema) MaxSize(n Node) int {
	if n.IsLeaf() {
		return s.LeafCapacity(n.Header().BlockSize)
	}
	return s.MaxChildren(n.Header().BlockSize)
}

// MinSize returns the minimum fill of a non-root node.
func (s *Schema) MinSize(n Node) int {
	return s.MaxSize(n) / 2
}

// Pairing is one cell of the two-level dispatch table, keyed by the tags of a
// parent and a child.
type Pairing struct {
	Parent *NodeKind
	Child  *NodeKind
	// Summarize computes the aggregate of the child as stored in the parent.
	Summarize func(child Node) BranchNodeEntry
	// Split moves the tail of src, starting at at, to the front of dst.
	Split func(src, dst Node, at int) error
	// Merge appends the content of src to dst.
	Merge func(dst, src Node) error
	// TakeFront moves the first k items of src to the end of dst.
	TakeFront func(dst, src Node, k int) error
}

type pairKey struct {
	parent, child Tag
}

// Registry is the dispatch table of node kinds. It is created when a store
// is opened and passed to everything that needs to interpret blocks.
type Registry struct {
	mu      sync.RWMutex
	kinds   map[Tag]*NodeKind
	pairs   map[pairKey]*Pairing
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:   make(map[Tag]*NodeKind),
		pairs:   make(map[pairKey]*Pairing),
		schemas: make(map[string]*Schema),
	}
}

// Register adds the node kinds of a layout. Registering the same layout
// twice returns the existing schema.
func (r *Registry) Register(l Layout) (*Schema, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	sig := l.signature()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schemas[sig]; ok {
		return s, nil
	}
	s := &Schema{Layout: Layout{Name: l.Name, Streams: append([]stream.Descriptor(nil), l.Streams...)}}
	s.Leaf = &NodeKind{Tag: Tag(xxhash.Sum64String("leaf:" + sig)), Leaf: true, Schema: s}
	s.Branch = &NodeKind{Tag: Tag(xxhash.Sum64String("branch:" + sig)), Schema: s}
	for _, k := range []*NodeKind{s.Leaf, s.Branch} {
		if other, ok := r.kinds[k.Tag]; ok {
			return nil, errors.Wrapf(ErrDispatchMismatch, "tag collision between %q and %q",
				l.Name, other.Schema.Layout.Name)
		}
	}
	r.kinds[s.Leaf.Tag] = s.Leaf
	r.kinds[s.Branch.Tag] = s.Branch
	r.pairs[pairKey{s.Branch.Tag, s.Leaf.Tag}] = &Pairing{
		Parent:    s.Branch,
		Child:     s.Leaf,
		Summarize: func(c Node) BranchNodeEntry { return c.(*LeafNode).summary() },
		Split: func(src, dst Node, at int) error {
			return src.(*LeafNode).splitTo(dst.(*LeafNode), at)
		},
		Merge: func(dst, src Node) error {
			return dst.(*LeafNode).mergeWith(src.(*LeafNode))
		},
		TakeFront: func(dst, src Node, k int) error {
			return dst.(*LeafNode).takeFront(src.(*LeafNode), k)
		},
	}
	r.pairs[pairKey{s.Branch.Tag, s.Branch.Tag}] = &Pairing{
		Parent:    s.Branch,
		Child:     s.Branch,
		Summarize: func(c Node) BranchNodeEntry { return c.(*BranchNode).summary() },
		Split: func(src, dst Node, at int) error {
			src.(*BranchNode).splitTo(dst.(*BranchNode), at)
			return nil
		},
		Merge: func(dst, src Node) error {
			dst.(*BranchNode).mergeWith(src.(*BranchNode))
			return nil
		},
		TakeFront: func(dst, src Node, k int) error {
			dst.(*BranchNode).takeFront(src.(*BranchNode), k)
			return nil
		},
	}
	r.schemas[sig] = s
	tracer().Debugf("registered layout %q: leaf tag %x, branch tag %x", l.Name, s.Leaf.Tag, s.Branch.Tag)
	return s, nil
}

// Kind looks up the node kind of a tag.
func (r *Registry) Kind(tag Tag) (*NodeKind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.kinds[tag]; ok {
		return k, nil
	}
	return nil, errors.Wrapf(ErrDispatchMismatch, "unknown node tag %x", uint64(tag))
}

// Pair looks up the dispatch cell for a parent and a child tag.
func (r *Registry) Pair(parent, child Tag) (*Pairing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.pairs[pairKey{parent, child}]; ok {
		return p, nil
	}
	return nil, errors.Wrapf(ErrDispatchMismatch, "no pairing for parent %x and child %x",
		uint64(parent), uint64(child))
}

// Reset drops all registered kinds. It is called when the owning store closes.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = make(map[Tag]*NodeKind)
	r.pairs = make(map[pairKey]*Pairing)
	r.schemas = make(map[string]*Schema)
}
