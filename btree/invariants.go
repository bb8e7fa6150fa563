package btree

import "github.com/cockroachdb/errors"

// Check validates the structural invariants of the tree: exact aggregates,
// node fill, uniform height, consistent dispatch, the root flag and the absence of redundant roots. Any
// violation is reported as ErrStructuralCorruption.
//
// Check walks the whole tree and is meant for tests and diagnostics.
func (t *Tree) Check() error {
	root, err := t.root()
	if err != nil {
		return err
	}
	if !root.Header().Root {
		return errors.Wrapf(ErrStructuralCorruption, "root %d lacks the root flag", root.Header().ID)
	}
	_, err = t.checkNode(root, true)
	return err
}

// checkNode validates the subtree below n and returns its aggregate.
func (t *Tree) checkNode(n Node, isRoot bool) (BranchNodeEntry, error) {
	h := n.Header()
	if !isRoot && h.Root {
		return nil, errors.Wrapf(ErrStructuralCorruption, "inner block %d carries the root flag", h.ID)
	}
	if err := t.checkFill(n, isRoot); err != nil {
		return nil, err
	}
	switch n := n.(type) {
	case *LeafNode:
		if err := checkLeaf(n); err != nil {
			return nil, err
		}
		return n.summary(), nil
	case *BranchNode:
		for i, id := range n.children {
			child, err := t.load(id)
			if err != nil {
				return nil, err
			}
			if child.Header().Level != h.Level-1 {
				return nil, errors.Wrapf(ErrStructuralCorruption, "block %d at level %d has child %d at level %d",
					h.ID, h.Level, id, child.Header().Level)
			}
			if _, err := t.pair(n, child); err != nil {
				return nil, err
			}
			e, err := t.checkNode(child, false)
			if err != nil {
				return nil, err
			}
			if !n.entries[i].Equal(e) {
				return nil, errors.Wrapf(ErrStructuralCorruption, "block %d: aggregate of child %d is %v, subtree holds %v",
					h.ID, id, n.entries[i], e)
			}
		}
		return n.summary(), nil
	}
	return nil, errors.AssertionFailedf("unknown node type %T", n)
}

// checkFill validates the fill of a node against its capacity.
func (t *Tree) checkFill(n Node, isRoot bool) error {
	h := n.Header()
	if n.ByteSize() > h.BlockSize {
		return errors.Wrapf(ErrStructuralCorruption, "block %d holds %d bytes in a %d byte block",
			h.ID, n.ByteSize(), h.BlockSize)
	}
	size, hi := n.Size(), t.schema.MaxSize(n)
	if size > hi {
		return errors.Wrapf(ErrStructuralCorruption, "block %d has %d elements, max is %d", h.ID, size, hi)
	}
	if isRoot {
		if !n.IsLeaf() && size < 2 {
			return errors.Wrapf(ErrStructuralCorruption, "root branch %d has %d children, need at least 2", h.ID, size)
		}
		return nil
	}
	if lo := t.schema.MinSize(n); size < lo {
		return errors.Wrapf(ErrStructuralCorruption, "block %d has %d elements, min is %d", h.ID, size, lo)
	}
	return nil
}

// checkLeaf validates that all streams of a leaf are row aligned.
func checkLeaf(leaf *LeafNode) error {
	size := leaf.Size()
	for i, s := range leaf.streams {
		if s.Size() != size {
			return errors.Wrapf(ErrStructuralCorruption, "leaf %d: stream %d has %d values, stream 0 has %d",
				leaf.ID, i, s.Size(), size)
		}
		if !s.Summary().Equal(s.SummaryRange(0, size)) {
			return errors.Wrapf(ErrStructuralCorruption, "leaf %d: index of stream %d is stale", leaf.ID, i)
		}
	}
	return nil
}
