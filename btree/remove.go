package btree

import "github.com/cockroachdb/errors"

// RemoveEntry removes row idx of the leaf of p and rebalances the tree. p is
// left reaching a valid leaf, not necessarily the one the row was in.
func (t *Tree) RemoveEntry(p *TreePath, idx int) error {
	return t.atomically(func() error {
		return t.removeRows(p, idx, 1)
	})
}

// UpdateEntry overwrites row idx of the leaf of p.
func (t *Tree) UpdateEntry(p *TreePath, idx int, e Entry) error {
	return t.atomically(func() error {
		n, err := t.AcquireWritable(p, 0)
		if err != nil {
			return err
		}
		if err := n.(*LeafNode).set(idx, e); err != nil {
			return err
		}
		return t.UpdatePath(p, 0)
	})
}

func (t *Tree) removeRows(p *TreePath, from, n int) error {
	leaf := p.Leaf()
	if from < 0 || n < 0 || from+n > leaf.Size() {
		return errors.Wrapf(ErrIndexOutOfBounds, "remove rows [%d,%d) of leaf with %d", from, from+n, leaf.Size())
	}
	ln, err := t.AcquireWritable(p, 0)
	if err != nil {
		return err
	}
	ln.(*LeafNode).remove(from, n)
	if err := t.UpdatePath(p, 0); err != nil {
		return err
	}
	return t.rebalance(p)
}

// removeSubtrees detaches a run of whole subtrees starting at global
// position pos, where p reaches the leaf starting at pos. The run is taken
// from the highest branch whose child at p starts at pos and holds at most
// budget entries. Both borders are rebalanced afterwards. It returns the
// number of entries removed.
func (t *Tree) removeSubtrees(p *TreePath, pos, budget int) (int, error) {
	level := 1
	for level < p.Height()-1 && p.idx[level-1] == 0 && t.schemaSummary(p.nodes[level]).Count() <= budget {
		level++
	}
	bn, err := t.AcquireWritable(p, level)
	if err != nil {
		return 0, err
	}
	b := bn.(*BranchNode)
	from, to, removed := p.idx[level-1], p.idx[level-1], 0
	for to < b.Size() && removed+b.entries[to].Count() <= budget {
		removed += b.entries[to].Count()
		to++
	}
	for _, id := range b.removeChildren(from, to) {
		if err := t.store.UnrefBlock(id); err != nil {
			return 0, err
		}
	}
	tracer().Debugf("level %d: detached children [%d,%d) of block %d, %d entries", level, from, to, b.ID, removed)
	if p.IsRoot(level) && b.Size() == 0 {
		_, err := t.CreateRootNode(0)
		return removed, err
	}
	if err := t.UpdatePath(p, level); err != nil {
		return 0, err
	}
	return removed, t.repairSeams(pos, 0)
}

// rebalance repairs underfull nodes along p, bottom up, until every non-root
// node of the path is at least at minimum fill, then collapses redundant roots.
func (t *Tree) rebalance(p *TreePath) error {
	for {
		changed := false
		for l := 0; l < p.Height()-1; l++ {
			n := p.nodes[l]
			if n.Size() >= t.schema.MinSize(n) || p.Branch(l+1).Size() < 2 {
				continue
			}
			if err := t.fixUnderflow(p, l); err != nil {
				return err
			}
			changed = true
			break
		}
		if err := t.RemoveRedundantRoot(p); err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// fixUnderflow repairs the underfull node at level of p with one of its
// siblings, in the order borrow-left, borrow-right, merge-left, merge-right.
func (t *Tree) fixUnderflow(p *TreePath, level int) error {
	pn, err := t.AcquireWritable(p, level+1)
	if err != nil {
		return err
	}
	parent := pn.(*BranchNode)
	n, err := t.AcquireWritable(p, level)
	if err != nil {
		return err
	}
	slot := p.idx[level]
	minFill := t.schema.MinSize(n)
	sibling := func(i int) (Node, error) {
		return t.load(parent.children[i])
	}
	canBorrow := func(s Node) bool {
		return s.Size() > minFill && s.Size()+n.Size() >= 2*minFill
	}
	if slot > 0 {
		left, err := sibling(slot - 1)
		if err != nil {
			return err
		}
		if canBorrow(left) {
			return t.borrowLeft(p, level, parent, n)
		}
	}
	if slot+1 < parent.Size() {
		right, err := sibling(slot + 1)
		if err != nil {
			return err
		}
		if canBorrow(right) {
			return t.borrowRight(p, level, parent, n)
		}
	}
	if slot > 0 {
		return t.mergeLeft(p, level, parent, n)
	}
	if slot+1 < parent.Size() {
		return t.mergeRight(p, level, parent, n)
	}
	return nil
}

// borrowLeft moves the tail of the left sibling to the front of n, evening
// out both sizes.
func (t *Tree) borrowLeft(p *TreePath, level int, parent *BranchNode, n Node) error {
	slot := p.idx[level]
	left, err := t.writableChild(parent, slot-1)
	if err != nil {
		return err
	}
	pr, err := t.pair(parent, n)
	if err != nil {
		return err
	}
	k := (left.Size() - n.Size() + 1) / 2
	if err := pr.Split(left, n, left.Size()-k); err != nil {
		return corruption(err, "borrow from left sibling %d", left.Header().ID)
	}
	parent.entries[slot-1] = pr.Summarize(left)
	parent.entries[slot] = pr.Summarize(n)
	if level > 0 {
		p.idx[level-1] += k
	}
	tracer().Debugf("level %d: block %d borrowed %d from left sibling %d", level, n.Header().ID, k, left.Header().ID)
	return t.UpdatePath(p, level+1)
}

// borrowRight moves the head of the right sibling to the end of n.
func (t *Tree) borrowRight(p *TreePath, level int, parent *BranchNode, n Node) error {
	slot := p.idx[level]
	right, err := t.writableChild(parent, slot+1)
	if err != nil {
		return err
	}
	pr, err := t.pair(parent, n)
	if err != nil {
		return err
	}
	k := (right.Size() - n.Size() + 1) / 2
	if err := pr.TakeFront(n, right, k); err != nil {
		return corruption(err, "borrow from right sibling %d", right.Header().ID)
	}
	parent.entries[slot] = pr.Summarize(n)
	parent.entries[slot+1] = pr.Summarize(right)
	tracer().Debugf("level %d: block %d borrowed %d from right sibling %d", level, n.Header().ID, k, right.Header().ID)
	return t.UpdatePath(p, level+1)
}

// mergeLeft appends n to its left sibling and drops n.
func (t *Tree) mergeLeft(p *TreePath, level int, parent *BranchNode, n Node) error {
	slot := p.idx[level]
	left, err := t.writableChild(parent, slot-1)
	if err != nil {
		return err
	}
	offset := left.Size()
	if err := t.absorb(parent, left, n); err != nil {
		return err
	}
	parent.entries[slot-1] = t.schemaSummary(left)
	if err := t.store.UnrefBlock(parent.removeChild(slot)); err != nil {
		return err
	}
	p.set(level, left, slot-1)
	if level > 0 {
		p.idx[level-1] += offset
	}
	tracer().Debugf("level %d: merged block %d into left sibling %d", level, n.Header().ID, left.Header().ID)
	return t.UpdatePath(p, level+1)
}

// mergeRight appends the right sibling to n and drops the sibling.
func (t *Tree) mergeRight(p *TreePath, level int, parent *BranchNode, n Node) error {
	slot := p.idx[level]
	right, err := t.load(parent.children[slot+1])
	if err != nil {
		return err
	}
	if err := t.absorb(parent, n, right); err != nil {
		return err
	}
	parent.entries[slot] = t.schemaSummary(n)
	if err := t.store.UnrefBlock(parent.removeChild(slot + 1)); err != nil {
		return err
	}
	tracer().Debugf("level %d: merged right sibling %d into block %d", level, right.Header().ID, n.Header().ID)
	return t.UpdatePath(p, level+1)
}

// absorb appends the content of src to the writable node dst. Children moved
// out of src gain a reference, as src is about to be released.
func (t *Tree) absorb(parent *BranchNode, dst, src Node) error {
	pr, err := t.pair(parent, src)
	if err != nil {
		return err
	}
	if dst.Size()+src.Size() > t.schema.MaxSize(dst) {
		return corruption(ErrCapacity, "merge of %d and %d", dst.Header().ID, src.Header().ID)
	}
	for _, c := range src.Children() {
		if err := t.store.RefBlock(c); err != nil {
			return err
		}
	}
	if err := pr.Merge(dst, src); err != nil {
		return corruption(err, "merge of %d and %d", dst.Header().ID, src.Header().ID)
	}
	return nil
}

func (t *Tree) schemaSummary(n Node) BranchNodeEntry {
	switch n := n.(type) {
	case *LeafNode:
		return n.summary()
	case *BranchNode:
		return n.summary()
	}
	assert(false, "unknown node type")
	return nil
}
