package btree

// Walk visits every block of the tree in pre-order, passing the node and the
// global position of its first entry. Walk stops early if fn returns false.
func (t *Tree) Walk(fn func(n Node, pos int) bool) error {
	root, err := t.root()
	if err != nil {
		return err
	}
	_, err = t.walkNode(root, 0, fn)
	return err
}

func (t *Tree) walkNode(n Node, pos int, fn func(n Node, pos int) bool) (bool, error) {
	assert(n != nil, "walkNode called with nil node")
	if !fn(n, pos) {
		return false, nil
	}
	inner, ok := n.(*BranchNode)
	if !ok {
		return true, nil
	}
	for i, id := range inner.children {
		child, err := t.load(id)
		if err != nil {
			return false, err
		}
		if cont, err := t.walkNode(child, pos, fn); err != nil || !cont {
			return cont, err
		}
		pos += inner.entries[i].Count()
	}
	return true, nil
}

// ForEachEntry walks leaf entries in order. Iteration stops early if fn
// returns false. The entry passed to fn is a copy.
func (t *Tree) ForEachEntry(fn func(pos int, e Entry) bool) error {
	return t.Walk(func(n Node, pos int) bool {
		leaf, ok := n.(*LeafNode)
		if !ok {
			return true
		}
		for i := 0; i < leaf.Size(); i++ {
			if !fn(pos+i, leaf.Entry(i)) {
				return false
			}
		}
		return true
	})
}

// Leaves returns the number of leaf blocks.
func (t *Tree) Leaves() (int, error) {
	n := 0
	err := t.Walk(func(node Node, _ int) bool {
		if node.IsLeaf() {
			n++
		}
		return true
	})
	return n, err
}

// Reachable returns the ids of all blocks reachable from the root.
func (t *Tree) Reachable() (map[BlockID]struct{}, error) {
	ids := make(map[BlockID]struct{})
	err := t.Walk(func(n Node, _ int) bool {
		ids[n.Header().ID] = struct{}{}
		return true
	})
	return ids, err
}
