package btree

import "github.com/cockroachdb/errors"

// Checkpoint is an opaque, restorable position of a LeafProvider.
type Checkpoint interface{}

// LeafProvider streams entries into bulk insertion.
type LeafProvider interface {
	// Size returns the number of entries not handed out yet.
	Size() int
	// GetLeaf appends up to max entries to an empty, unattached leaf and
	// returns how many it added.
	GetLeaf(leaf *LeafNode, max int) (int, error)
	Checkpoint() Checkpoint
	Rollback(cp Checkpoint)
}

// ChildFunc builds an unattached subtree of the given level and returns it
// with its number of entries.
type ChildFunc func(provider LeafProvider, level int) (Node, int, error)

// BuildSubtree builds an unattached subtree of the given level bottom-up,
// filling every node as far as the provider allows. On error nothing built
// by this call remains allocated.
func (t *Tree) BuildSubtree(provider LeafProvider, level int) (Node, int, error) {
	if provider.Size() == 0 {
		return nil, 0, errors.Wrap(ErrProviderFailed, "provider exhausted")
	}
	if level == 0 {
		n, err := t.store.CreateNode(t.schema.Leaf, 0, false)
		if err != nil {
			return nil, 0, err
		}
		leaf := n.(*LeafNode)
		k, err := provider.GetLeaf(leaf, t.schema.LeafCapacity(leaf.BlockSize))
		if err == nil && k == 0 {
			err = errors.New("provider returned an empty leaf")
		}
		if err != nil {
			t.release(leaf)
			return nil, 0, errors.Mark(err, ErrProviderFailed)
		}
		leaf.reindex()
		return leaf, k, nil
	}
	n, err := t.store.CreateNode(t.schema.Branch, level, false)
	if err != nil {
		return nil, 0, err
	}
	b := n.(*BranchNode)
	total := 0
	for b.Size() < t.schema.MaxSize(b) && provider.Size() > 0 {
		child, k, err := t.BuildSubtree(provider, level-1)
		if err != nil {
			t.release(b)
			return nil, 0, err
		}
		pr, err := t.pair(b, child)
		if err != nil {
			t.release(child)
			t.release(b)
			return nil, 0, err
		}
		b.insertChild(b.Size(), child.Header().ID, pr.Summarize(child))
		if err := t.store.RefBlock(child.Header().ID); err != nil {
			t.release(b)
			return nil, 0, err
		}
		total += k
	}
	return b, total, nil
}

// InsertSubtree attaches subtrees produced by childFn to the branch at level
// of p, starting at child position at, as long as the branch has room and the
// provider has entries. Every attempt runs in its own savepoint behind a
// provider checkpoint: if building or attaching a child fails, the provider is
// rolled back, the unattached child is released and the error is returned
// together with the number of entries committed so far. The position after
// the last attached child is returned as well.
func (t *Tree) InsertSubtree(p *TreePath, level, at int, provider LeafProvider, childFn ChildFunc) (int, int, error) {
	if childFn == nil {
		childFn = t.BuildSubtree
	}
	committed := 0
	for provider.Size() > 0 {
		parent := p.Branch(level)
		if parent.Size() >= t.schema.MaxSize(parent) {
			break
		}
		cp := provider.Checkpoint()
		sp := t.store.Begin()
		child, k, err := childFn(provider, level-1)
		if err == nil {
			at, err = t.insertChild(p, level, at, child)
		}
		if err != nil {
			provider.Rollback(cp)
			if rerr := t.store.Rollback(sp); rerr != nil {
				return committed, at, errors.CombineErrors(err, rerr)
			}
			tracer().Debugf("batch insert: attempt at level %d failed after %d entries: %v", level, committed, err)
			return committed, at, err
		}
		if err := t.store.Commit(sp); err != nil {
			return committed, at, err
		}
		at++
		committed += k
	}
	return committed, at, nil
}

// InsertBatch inserts all entries of provider before the iterator position.
// It returns the number of entries inserted. A failing provider ends the batch
// early: what was attached before the failure stays committed, and the
// provider error is returned with the count. Any other error rolls back the
// whole batch. On return the iterator points to the entry that followed the
// inserted ones.
func (t *Tree) InsertBatch(it *Iterator, provider LeafProvider) (int, error) {
	if err := it.check(t); err != nil {
		return 0, err
	}
	startPos := max(it.EntryOffset(), 0)
	cp := provider.Checkpoint()
	sp := t.store.Begin()
	committed, err := t.insertBatch(it.path, max(it.idx, 0), startPos, provider)
	t.epoch++
	if err != nil && !errors.Is(err, ErrProviderFailed) {
		provider.Rollback(cp)
		it.invalidate()
		if rerr := t.store.Rollback(sp); rerr != nil {
			return 0, errors.CombineErrors(err, rerr)
		}
		return 0, err
	}
	if cerr := t.store.Commit(sp); cerr != nil {
		it.invalidate()
		return committed, cerr
	}
	if rerr := it.reseat(startPos + committed); rerr != nil {
		return committed, rerr
	}
	return committed, err
}

// insertBatch returns the number of attached entries. An error marked
// ErrProviderFailed leaves a valid tree holding them.
func (t *Tree) insertBatch(p *TreePath, idx, startPos int, provider LeafProvider) (int, error) {
	committed := 0
	leaf := p.Leaf()
	if p.Height() == 1 && leaf.Size() == 0 && provider.Size() > 0 {
		k, err := t.fillRootLeaf(p, provider)
		if err != nil {
			return 0, err
		}
		committed, idx = k, k
		leaf = p.Leaf()
	}
	if provider.Size() == 0 {
		return committed, nil
	}
	// open a seam at level 1
	var at int
	if idx > 0 && idx < leaf.Size() {
		if _, err := t.splitNode(p, 0, idx); err != nil {
			return 0, err
		}
		at = p.idx[0] + 1
	} else {
		if p.IsRoot(0) {
			if err := t.NewRoot(p); err != nil {
				return 0, err
			}
		}
		at = p.idx[0]
		if idx > 0 {
			at++
		}
	}
	var perr error
	level := 1
	for provider.Size() > 0 {
		k, next, err := t.InsertSubtree(p, level, at, provider, t.BuildSubtree)
		committed += k
		at = next
		if err != nil {
			if !errors.Is(err, ErrProviderFailed) {
				return 0, err
			}
			perr = err
			break
		}
		if provider.Size() == 0 {
			break
		}
		// the branch at level is full: lift the seam one level up
		if p.IsRoot(level) {
			if err := t.NewRoot(p); err != nil {
				return 0, err
			}
		}
		parent := p.Branch(level)
		switch at {
		case 0:
			at = p.idx[level]
		case parent.Size():
			at = p.idx[level] + 1
		default:
			if _, err := t.splitNode(p, level, at); err != nil {
				return 0, err
			}
			at = p.idx[level] + 1
		}
		level++
	}
	tracer().Debugf("batch insert: %d entries attached up to level %d", committed, level)
	if err := t.repairSeams(startPos, committed); err != nil {
		return 0, err
	}
	return committed, perr
}

// fillRootLeaf fills the empty root leaf of an empty tree.
func (t *Tree) fillRootLeaf(p *TreePath, provider LeafProvider) (int, error) {
	cp := provider.Checkpoint()
	sp := t.store.Begin()
	k, err := func() (int, error) {
		n, err := t.AcquireWritable(p, 0)
		if err != nil {
			return 0, err
		}
		leaf := n.(*LeafNode)
		if leaf.BlockSize < t.store.BlockSize() {
			if err := t.store.ResizeBlock(leaf.ID, t.store.BlockSize()); err != nil {
				return 0, err
			}
		}
		k, err := provider.GetLeaf(leaf, t.schema.LeafCapacity(leaf.BlockSize))
		if err != nil {
			return 0, errors.Mark(err, ErrProviderFailed)
		}
		leaf.reindex()
		return k, nil
	}()
	if err != nil {
		provider.Rollback(cp)
		if rerr := t.store.Rollback(sp); rerr != nil {
			return 0, errors.CombineErrors(err, rerr)
		}
		return 0, err
	}
	return k, t.store.Commit(sp)
}

// repairSeams rebalances the paths along both borders of an inserted range
// [startPos, startPos+n).
func (t *Tree) repairSeams(startPos, n int) error {
	total, err := t.Count()
	if err != nil {
		return err
	}
	for _, pos := range []int{startPos - 1, startPos, startPos + n - 1, startPos + n} {
		if pos < 0 || pos >= total {
			continue
		}
		it, err := t.Seek(pos)
		if err != nil {
			return err
		}
		if err := t.rebalance(it.path); err != nil {
			return err
		}
	}
	return nil
}

// --- Slice provider --------------------------------------------------------

// SliceProvider hands out entries from a slice, spreading them evenly over
// the leaves it fills.
type SliceProvider struct {
	entries []Entry
	pos     int
}

var _ LeafProvider = (*SliceProvider)(nil)

// NewSliceProvider creates a provider over entries.
func NewSliceProvider(entries []Entry) *SliceProvider {
	return &SliceProvider{entries: entries}
}

// Size returns the number of remaining entries.
func (s *SliceProvider) Size() int { return len(s.entries) - s.pos }

// GetLeaf appends the next entries to leaf. If more than max entries remain,
// the count is chosen so that all following leaves get about the same size.
func (s *SliceProvider) GetLeaf(leaf *LeafNode, max int) (int, error) {
	n := s.Size()
	if n > max {
		leaves := (n + max - 1) / max
		n = (n + leaves - 1) / leaves
	}
	for i := 0; i < n; i++ {
		if err := leaf.Append(s.entries[s.pos]); err != nil {
			return i, err
		}
		s.pos++
	}
	return n, nil
}

// Checkpoint returns the current position.
func (s *SliceProvider) Checkpoint() Checkpoint { return s.pos }

// Rollback restores a position returned by Checkpoint.
func (s *SliceProvider) Rollback(cp Checkpoint) { s.pos = cp.(int) }
