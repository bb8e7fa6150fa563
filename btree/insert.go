package btree

import "github.com/cockroachdb/errors"

// InsertEntry inserts e before row idx of the leaf of p. If the leaf is full
// it is split at its median and the insert is retried once in the half that
// contains idx. It returns the row of the new entry in p's (possibly new)
// leaf; p is updated to reach it.
func (t *Tree) InsertEntry(p *TreePath, idx int, e Entry) (int, error) {
	var at int
	err := t.atomically(func() error {
		var err error
		at, err = t.insertEntry(p, idx, e)
		return err
	})
	return at, err
}

func (t *Tree) insertEntry(p *TreePath, idx int, e Entry) (int, error) {
	if err := t.schema.Layout.checkEntry(e); err != nil {
		return idx, err
	}
	n, err := t.AcquireWritable(p, 0)
	if err != nil {
		return idx, err
	}
	leaf := n.(*LeafNode)
	err = leaf.insert(idx, e)
	if errors.Is(err, ErrCapacity) && p.IsRoot(0) && leaf.BlockSize < t.store.BlockSize() {
		size := min(2*leaf.BlockSize, t.store.BlockSize())
		if err := t.store.ResizeBlock(leaf.ID, size); err != nil {
			return idx, err
		}
		tracer().Debugf("grew root leaf %d to %d bytes", leaf.ID, size)
		err = leaf.insert(idx, e)
	}
	if errors.Is(err, ErrCapacity) {
		at := leaf.Size() / 2
		right, err := t.splitNode(p, 0, at)
		if err != nil {
			return idx, err
		}
		if idx >= at {
			p.set(0, right, p.idx[0]+1)
			idx -= at
		}
		if err := p.Leaf().insert(idx, e); err != nil {
			if errors.Is(err, ErrCapacity) {
				return idx, corruption(err, "entry does not fit into half a leaf")
			}
			return idx, err
		}
	} else if err != nil {
		return idx, err
	}
	return idx, t.UpdatePath(p, 0)
}

// splitNode moves the content of the node at level of p from position at to
// a new right sibling, inserted into the parent directly after it. A root is
// split by growing the tree first. Afterwards p still reaches the original
// (left) node. The new sibling is returned.
func (t *Tree) splitNode(p *TreePath, level, at int) (Node, error) {
	n, err := t.AcquireWritable(p, level)
	if err != nil {
		return nil, err
	}
	if p.IsRoot(level) {
		if err := t.NewRoot(p); err != nil {
			return nil, err
		}
	}
	kind := t.schema.Branch
	if n.IsLeaf() {
		kind = t.schema.Leaf
	}
	right, err := t.store.CreateNode(kind, level, false)
	if err != nil {
		return nil, err
	}
	pn, err := t.AcquireWritable(p, level+1)
	if err != nil {
		return nil, err
	}
	parent := pn.(*BranchNode)
	pr, err := t.pair(parent, n)
	if err != nil {
		return nil, err
	}
	if err := pr.Split(n, right, at); err != nil {
		return nil, corruption(err, "split of block %d", n.Header().ID)
	}
	parent.entries[p.idx[level]] = pr.Summarize(n)
	if _, err := t.insertChild(p, level+1, p.idx[level]+1, right); err != nil {
		return nil, err
	}
	tracer().Debugf("split block %d at level %d: %d|%d, new sibling %d",
		n.Header().ID, level, n.Size(), right.Size(), right.Header().ID)
	return right, nil
}

// insertChild inserts child at position at of the branch at level of p,
// splitting that branch first if it is full. Afterwards p reaches the branch
// holding the new child; the returned value is the child's index there.
func (t *Tree) insertChild(p *TreePath, level, at int, child Node) (int, error) {
	pn, err := t.AcquireWritable(p, level)
	if err != nil {
		return at, err
	}
	parent := pn.(*BranchNode)
	pr, err := t.pair(parent, child)
	if err != nil {
		return at, err
	}
	if parent.Size() >= t.schema.MaxSize(parent) {
		m := parent.Size() / 2
		right, err := t.splitNode(p, level, m)
		if err != nil {
			return at, err
		}
		if at > m {
			p.set(level, right, p.idx[level]+1)
			p.idx[level-1] -= m
			at -= m
		}
		parent = p.Branch(level)
	}
	parent.insertChild(at, child.Header().ID, pr.Summarize(child))
	if err := t.store.RefBlock(child.Header().ID); err != nil {
		return at, err
	}
	return at, t.UpdatePath(p, level)
}
