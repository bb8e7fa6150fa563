package btree

import "github.com/cockroachdb/errors"

// AcquireWritable returns the node at level of p in a state where it may be
// written. With copy-on-write, every immutable node from the root down to
// level is cloned first: the clones are wired into their parents (or set as
// the tree root) and the originals lose one reference. Without copy-on-write
// the node is marked dirty. Path entries are replaced by the writable nodes.
func (t *Tree) AcquireWritable(p *TreePath, level int) (Node, error) {
	if t.store.CopyOnWrite() {
		top := p.Height() - 1
		for l := top; l >= level; l-- {
			n := p.nodes[l]
			if t.store.IsMutable(n) {
				continue
			}
			c, err := t.cloneInto(p, l, n)
			if err != nil {
				return nil, err
			}
			p.nodes[l] = c
		}
	}
	n := p.nodes[level]
	if err := t.store.Update(n); err != nil {
		return nil, err
	}
	return n, nil
}

// cloneInto clones n, which sits at level of p, and rewires its parent.
func (t *Tree) cloneInto(p *TreePath, level int, n Node) (Node, error) {
	old := n.Header().ID
	c, err := t.store.CloneBlock(old)
	if err != nil {
		return nil, err
	}
	if p.IsRoot(level) {
		err = t.store.SetRoot(t.cfg.Name, c.Header().ID)
	} else {
		parent := p.Branch(level + 1)
		err = t.relink(parent, p.idx[level], old, c.Header().ID)
	}
	if err != nil {
		return nil, err
	}
	tracer().Debugf("cow: cloned block %d at level %d into %d", old, level, c.Header().ID)
	return c, nil
}

// relink replaces child old at index i of a writable parent with id.
func (t *Tree) relink(parent *BranchNode, i int, old, id BlockID) error {
	assert(parent.children[i] == old, "relink: child id mismatch")
	if err := t.store.Update(parent); err != nil {
		return err
	}
	parent.children[i] = id
	if err := t.store.RefBlock(id); err != nil {
		return err
	}
	return t.store.UnrefBlock(old)
}

// writableChild returns child i of a writable parent ready for writing,
// cloning it first if needed.
func (t *Tree) writableChild(parent *BranchNode, i int) (Node, error) {
	n, err := t.load(parent.children[i])
	if err != nil {
		return nil, err
	}
	if t.store.CopyOnWrite() && !t.store.IsMutable(n) {
		old := n.Header().ID
		if n, err = t.store.CloneBlock(old); err != nil {
			return nil, err
		}
		if err := t.relink(parent, i, old, n.Header().ID); err != nil {
			return nil, err
		}
	}
	if err := t.store.Update(n); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdatePath recomputes the aggregate of the node at each level, starting at
// fromLevel, inside its parent. It stops at the first ancestor whose stored
// aggregate is already correct.
func (t *Tree) UpdatePath(p *TreePath, fromLevel int) error {
	for l := fromLevel; l < p.Height()-1; l++ {
		child := p.nodes[l]
		pr, err := t.pair(p.nodes[l+1], child)
		if err != nil {
			return err
		}
		e := pr.Summarize(child)
		ci := p.idx[l]
		if p.Branch(l + 1).entries[ci].Equal(e) {
			return nil
		}
		parent, err := t.AcquireWritable(p, l+1)
		if err != nil {
			return err
		}
		parent.(*BranchNode).entries[ci] = e
	}
	return nil
}

// CreateRootNode creates an empty root of the given level and installs it as
// the root of the tree. The previous root, if any, loses its reference.
func (t *Tree) CreateRootNode(level int) (Node, error) {
	kind := t.schema.Branch
	if level == 0 {
		kind = t.schema.Leaf
	}
	n, err := t.store.CreateNode(kind, level, true)
	if err != nil {
		return nil, err
	}
	if level == 0 && n.Header().BlockSize != t.cfg.RootBlockSize {
		if err := t.store.ResizeBlock(n.Header().ID, t.cfg.RootBlockSize); err != nil {
			return nil, err
		}
	}
	if err := t.store.SetRoot(t.cfg.Name, n.Header().ID); err != nil {
		return nil, err
	}
	return n, nil
}

// NewRoot grows the tree by one level: a new root branch is created with the
// current root as its only child.
func (t *Tree) NewRoot(p *TreePath) error {
	top := p.Height() - 1
	old, err := t.AcquireWritable(p, top)
	if err != nil {
		return err
	}
	h := old.Header()
	if h.BlockSize < t.store.BlockSize() {
		if err := t.store.ResizeBlock(h.ID, t.store.BlockSize()); err != nil {
			return err
		}
	}
	root, err := t.store.CreateNode(t.schema.Branch, h.Level+1, true)
	if err != nil {
		return err
	}
	pr, err := t.pair(root, old)
	if err != nil {
		return err
	}
	root.(*BranchNode).insertChild(0, h.ID, pr.Summarize(old))
	if err := t.store.RefBlock(h.ID); err != nil {
		return err
	}
	h.Root = false
	if err := t.store.SetRoot(t.cfg.Name, root.Header().ID); err != nil {
		return err
	}
	p.grow(root)
	tracer().Debugf("new root %d at level %d", root.Header().ID, h.Level+1)
	return nil
}

// RemoveRedundantRoot collapses roots with exactly one child into that child,
// repeatedly. A root branch without children is replaced by an empty leaf.
func (t *Tree) RemoveRedundantRoot(p *TreePath) error {
	for p.Height() > 1 {
		top := p.Height() - 1
		root := p.Branch(top)
		switch root.Size() {
		case 0:
			leaf, err := t.CreateRootNode(0)
			if err != nil {
				return err
			}
			*p = *newPath(leaf)
			return nil
		case 1:
		default:
			return nil
		}
		if _, err := t.pair(root, p.nodes[top-1]); err != nil {
			return err
		}
		child, err := t.AcquireWritable(p, top-1)
		if err != nil {
			return err
		}
		child.Header().Root = true
		if err := t.store.SetRoot(t.cfg.Name, child.Header().ID); err != nil {
			return err
		}
		p.shrink()
		tracer().Debugf("collapsed redundant root, new root %d", child.Header().ID)
	}
	return nil
}

// RefBlock adds a reference to a block.
func (t *Tree) RefBlock(id BlockID) error {
	return t.store.RefBlock(id)
}

// UnrefBlock drops a reference to a block, freeing the subtree below it when
// it becomes unreachable.
func (t *Tree) UnrefBlock(id BlockID) error {
	return t.store.UnrefBlock(id)
}

// release frees a subtree that was built but never attached.
func (t *Tree) release(n Node) {
	if n == nil {
		return
	}
	if err := t.store.RemoveBlock(n.Header().ID); err != nil {
		tracer().Errorf("release of unattached block %d: %v", n.Header().ID, err)
	}
}

// load fetches a block and checks it against the dispatch table.
func (t *Tree) load(id BlockID) (Node, error) {
	n, err := t.store.GetBlock(id)
	if err != nil {
		return nil, err
	}
	kind, err := t.store.Registry().Kind(n.Header().Tag)
	if err != nil {
		return nil, err
	}
	if kind.Schema != t.schema || kind.Leaf != n.IsLeaf() {
		return nil, errors.Wrapf(ErrDispatchMismatch, "block %d has tag of layout %q, tree uses %q",
			id, kind.Schema.Layout.Name, t.schema.Layout.Name)
	}
	return n, nil
}

func (t *Tree) pair(parent, child Node) (*Pairing, error) {
	return t.store.Registry().Pair(parent.Header().Tag, child.Header().Tag)
}
