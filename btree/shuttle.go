package btree

import "github.com/cockroachdb/errors"

// Direction is the walking direction of a shuttle.
type Direction int8

const (
	Forward Direction = iota
	Backward
)

// Status is the outcome of a shuttle hook.
type Status int8

const (
	// NotFound means the target lies beyond the scanned range.
	NotFound Status = iota
	// Found means the target lies at the returned index.
	Found
	// Empty means the node has nothing to scan.
	Empty
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Empty:
		return "empty"
	}
	return "not-found"
}

// BranchResult is returned by the branch hook of a shuttle.
type BranchResult struct {
	Idx    int
	Status Status
}

// LeafResult is returned by the leaf hook of a shuttle.
type LeafResult struct {
	Idx    int
	Status Status
}

// IteratorState is the cursor a ride starts from and ends at: a path to a
// leaf and a row inside it. Idx is -1 before the start of the tree and the
// leaf size after its end.
type IteratorState struct {
	Path *TreePath
	Idx  int
}

// Shuttle is a stateful walker driven over a tree by the ride functions.
//
// A forward shuttle scans from start (inclusive) towards higher indices; a
// backward shuttle scans from start (exclusive) towards lower indices. The
// branch hook consumes every child it passes without finding the target and
// reports the child containing it. FixTarget asks the shuttle to give back
// what it consumed for children [from,to), because the ride is about to
// descend into them.
type Shuttle interface {
	Direction() Direction
	Start(st *IteratorState)
	Branch(n *BranchNode, start int) BranchResult
	FixTarget(n *BranchNode, from, to int)
	Leaf(n *LeafNode, start int) LeafResult
	Finish(st *IteratorState)
}

// Descend rides sh from the root down to a leaf.
func (t *Tree) Descend(sh Shuttle) (*IteratorState, error) {
	root, err := t.root()
	if err != nil {
		return nil, err
	}
	st := &IteratorState{Path: newPath(root)}
	sh.Start(st)
	if err := t.descend(st, sh, root.Header().Level); err != nil {
		return nil, err
	}
	sh.Finish(st)
	return st, nil
}

// descend walks from the node at level of the state's path down to a leaf.
// If a branch does not contain the target, the walk falls back into its last
// (first, for backward shuttles) child after a FixTarget correction and ends
// after the end (before the start) of the tree.
func (t *Tree) descend(st *IteratorState, sh Shuttle, level int) error {
	p := st.Path
	fwd := sh.Direction() == Forward
	for l := level; l > 0; l-- {
		n := p.Branch(l)
		if n.Size() == 0 {
			return errors.Wrapf(ErrStructuralCorruption, "branch %d has no children", n.ID)
		}
		start := 0
		if !fwd {
			start = n.Size()
		}
		r := sh.Branch(n, start)
		idx := r.Idx
		if r.Status != Found {
			if fwd {
				idx = n.Size() - 1
			} else {
				idx = 0
			}
			sh.FixTarget(n, idx, idx+1)
		}
		if err := t.step(p, l, idx); err != nil {
			return err
		}
	}
	leaf := p.Leaf()
	start := 0
	if !fwd {
		start = leaf.Size()
	}
	r := sh.Leaf(leaf, start)
	switch {
	case r.Status == Found:
		st.Idx = r.Idx
	case fwd:
		st.Idx = leaf.Size()
	default:
		st.Idx = -1
	}
	return nil
}

// step loads child idx of the branch at level into the path.
func (t *Tree) step(p *TreePath, level, idx int) error {
	n := p.Branch(level)
	child, err := t.load(n.children[idx])
	if err != nil {
		return err
	}
	if child.Header().Level != level-1 {
		return errors.Wrapf(ErrStructuralCorruption, "block %d at level %d has child %d at level %d",
			n.ID, level, child.Header().ID, child.Header().Level)
	}
	p.set(level-1, child, idx)
	return nil
}

// RideForward moves a forward shuttle from the state's position: the leaf
// hook runs first; while the target is beyond the current subtree the ride
// goes up and scans the parent to the right of the child it came from, then
// descends into the subtree found. If the root is exhausted, the ride ends
// after the end of the tree.
func (t *Tree) RideForward(st *IteratorState, sh Shuttle) error {
	assert(sh.Direction() == Forward, "RideForward with a backward shuttle")
	return t.ride(st, sh, true)
}

// RideBackward is the mirror image of RideForward. If the root is exhausted,
// the ride ends before the start of the tree.
func (t *Tree) RideBackward(st *IteratorState, sh Shuttle) error {
	assert(sh.Direction() == Backward, "RideBackward with a forward shuttle")
	return t.ride(st, sh, false)
}

func (t *Tree) ride(st *IteratorState, sh Shuttle, fwd bool) error {
	sh.Start(st)
	p := st.Path
	if r := sh.Leaf(p.Leaf(), st.Idx); r.Status == Found {
		st.Idx = r.Idx
		sh.Finish(st)
		return nil
	}
	top := -1 // highest level whose branch hook consumed children
	for l := 1; l < p.Height(); l++ {
		n := p.Branch(l)
		start := p.idx[l-1]
		if fwd {
			start++
		}
		r := sh.Branch(n, start)
		if r.Status == Found {
			if err := t.step(p, l, r.Idx); err != nil {
				return err
			}
			if err := t.descend(st, sh, l-1); err != nil {
				return err
			}
			sh.Finish(st)
			return nil
		}
		if (fwd && start < n.Size()) || (!fwd && start > 0) {
			top = l
		}
	}
	if top < 0 {
		if fwd {
			st.Idx = p.Leaf().Size()
		} else {
			st.Idx = -1
		}
		sh.Finish(st)
		return nil
	}
	n := p.Branch(top)
	idx := 0
	if fwd {
		idx = n.Size() - 1
	}
	sh.FixTarget(n, idx, idx+1)
	if err := t.step(p, top, idx); err != nil {
		return err
	}
	if err := t.descend(st, sh, top-1); err != nil {
		return err
	}
	sh.Finish(st)
	return nil
}
