package store

import (
	"maps"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/npillmayer/streamtree/btree"
)

// CommitEvent is published to subscribers when a snapshot is sealed.
type CommitEvent struct {
	Snapshot btree.SnapshotID
	Parent   btree.SnapshotID
	Label    uuid.UUID
	Roots    map[string]btree.BlockID
	// Live is the number of blocks in the arena after the commit.
	Live int
}

// Snapshot is a versioned view of a Memory store and the btree.BlockStore
// trees work on. A snapshot is used by one goroutine while it is writable;
// sealed snapshots may be read concurrently.
type Snapshot struct {
	mem       *Memory
	id        btree.SnapshotID
	parent    btree.SnapshotID
	label     uuid.UUID
	roots     map[string]btree.BlockID
	committed bool
	dropped   bool
	journal   journal
}

var _ btree.BlockStore = (*Snapshot)(nil)

// ID returns the sequence number of the snapshot.
func (s *Snapshot) ID() btree.SnapshotID { return s.id }

// Parent returns the id of the snapshot this one was branched from, or 0.
func (s *Snapshot) Parent() btree.SnapshotID { return s.parent }

// Label returns the unique label of the snapshot.
func (s *Snapshot) Label() uuid.UUID { return s.label }

// Committed reports whether the snapshot has been sealed.
func (s *Snapshot) Committed() bool { return s.committed }

// Store returns the store of the snapshot.
func (s *Snapshot) Store() *Memory { return s.mem }

// Roots returns a copy of the named roots.
func (s *Snapshot) Roots() map[string]btree.BlockID { return maps.Clone(s.roots) }

// BlockSize is the size of new blocks.
func (s *Snapshot) BlockSize() int { return s.mem.opts.BlockSize }

// Registry is the dispatch table of the store.
func (s *Snapshot) Registry() *btree.Registry { return s.mem.registry }

// CopyOnWrite reports whether the store clones blocks before writes.
func (s *Snapshot) CopyOnWrite() bool { return s.mem.opts.Profile == COW }

// IsMutable reports whether n may be written by this snapshot.
func (s *Snapshot) IsMutable(n btree.Node) bool {
	if s.dropped {
		return false
	}
	if !s.CopyOnWrite() {
		return true
	}
	return !s.committed && n.Header().Snapshot == s.id
}

func (s *Snapshot) checkWritable() error {
	switch {
	case s.mem.closed:
		return ErrClosed
	case s.dropped:
		return errors.Wrapf(ErrSnapshotState, "snapshot %d was dropped", s.id)
	case s.committed && s.CopyOnWrite():
		return errors.Wrapf(btree.ErrImmutable, "snapshot %d is committed", s.id)
	}
	return nil
}

// GetBlock returns the node of block id.
func (s *Snapshot) GetBlock(id btree.BlockID) (btree.Node, error) {
	m := s.mem
	if m.cache != nil {
		if n, ok := m.cache.Get(uint64(id)); ok {
			return n, nil
		}
	}
	m.mu.RLock()
	sl, err := m.get(id)
	cache := err == nil && m.cacheable(sl.node)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if cache {
		m.cache.Set(uint64(id), sl.node, int64(sl.node.Header().BlockSize))
	}
	return sl.node, nil
}

// CreateNode allocates an empty, unreferenced node.
func (s *Snapshot) CreateNode(kind *btree.NodeKind, level int, root bool) (btree.Node, error) {
	if kind == nil || kind.Leaf != (level == 0) {
		return nil, errors.Wrapf(btree.ErrDispatchMismatch, "node kind does not fit level %d", level)
	}
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return nil, err
	}
	n := kind.NewNode(btree.NodeHeader{
		ID:        m.alloc(),
		Level:     level,
		Root:      root,
		Snapshot:  s.id,
		Dirty:     !s.CopyOnWrite(),
		BlockSize: m.opts.BlockSize,
	})
	m.put(n, 0)
	s.journal.record(delta{op: opCreate, id: n.Header().ID})
	m.metrics.Created.Inc()
	return n, nil
}

// CloneBlock copies block id into a new unreferenced block owned by this
// snapshot and adds a reference to each of its children.
func (s *Snapshot) CloneBlock(id btree.BlockID) (btree.Node, error) {
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return nil, err
	}
	sl, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c := sl.node.Clone()
	h := c.Header()
	h.ID = m.alloc()
	h.Snapshot = s.id
	h.Dirty = !s.CopyOnWrite()
	m.put(c, 0)
	s.journal.record(delta{op: opCreate, id: h.ID})
	for _, child := range c.Children() {
		if err := s.ref(child); err != nil {
			return nil, err
		}
	}
	m.metrics.Created.Inc()
	m.metrics.Cloned.Inc()
	return c, nil
}

// RefBlock adds a reference to block id.
func (s *Snapshot) RefBlock(id btree.BlockID) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	return s.ref(id)
}

// UnrefBlock drops a reference to block id, freeing it and, recursively, the
// children only it referenced when the count reaches zero.
func (s *Snapshot) UnrefBlock(id btree.BlockID) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	return s.unref(id)
}

// RemoveBlock frees an unreferenced block.
func (s *Snapshot) RemoveBlock(id btree.BlockID) error {
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	if sl.refs != 0 {
		return errors.Wrapf(btree.ErrStructuralCorruption, "remove of block %d with %d references", id, sl.refs)
	}
	return s.free(sl.node)
}

// ResizeBlock changes the byte size of a mutable block.
func (s *Snapshot) ResizeBlock(id btree.BlockID, size int) error {
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	n := sl.node
	if size <= 0 || size > m.opts.BlockSize || size < n.ByteSize() {
		return errors.Wrapf(btree.ErrInvalidConfig, "resize of block %d holding %d bytes to %d",
			id, n.ByteSize(), size)
	}
	if err := s.update(n); err != nil {
		return err
	}
	n.Header().BlockSize = size
	return nil
}

// Update must be called before n is written in place. It records a
// before-image of n for the innermost open savepoint.
func (s *Snapshot) Update(n btree.Node) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	return s.update(n)
}

func (s *Snapshot) update(n btree.Node) error {
	if !s.IsMutable(n) {
		return errors.Wrapf(btree.ErrImmutable, "block %d of snapshot %d written by snapshot %d",
			n.Header().ID, n.Header().Snapshot, s.id)
	}
	id := n.Header().ID
	if s.journal.needsImage(id) {
		s.journal.record(delta{op: opImage, id: id, node: n.Clone()})
	}
	if !s.CopyOnWrite() {
		n.Header().Dirty = true
	}
	return nil
}

// Root returns the root block of the named tree.
func (s *Snapshot) Root(name string) btree.BlockID {
	return s.roots[name]
}

// SetRoot makes id the root of the named tree.
func (s *Snapshot) SetRoot(name string, id btree.BlockID) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()
	if err := s.checkWritable(); err != nil {
		return err
	}
	if err := s.ref(id); err != nil {
		return err
	}
	prev := s.roots[name]
	s.roots[name] = id
	s.journal.record(delta{op: opRoot, name: name, prev: prev})
	if prev != btree.NoBlock {
		return s.unref(prev)
	}
	return nil
}

// --- Savepoints -----------------------------------------------------------

// Begin opens a savepoint.
func (s *Snapshot) Begin() btree.Savepoint {
	return s.journal.begin()
}

func (s *Snapshot) checkSavepoint(sp btree.Savepoint) error {
	if int(sp) != s.journal.depth() || sp <= 0 {
		return errors.Wrapf(ErrSavepoint, "savepoint %d closed at depth %d", sp, s.journal.depth())
	}
	return nil
}

// Commit closes savepoint sp and keeps its changes.
func (s *Snapshot) Commit(sp btree.Savepoint) error {
	if err := s.checkSavepoint(sp); err != nil {
		return err
	}
	s.journal.pop(true)
	return nil
}

// Rollback undoes every change made since sp was opened and closes it.
func (s *Snapshot) Rollback(sp btree.Savepoint) error {
	if err := s.checkSavepoint(sp); err != nil {
		return err
	}
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	tail := s.journal.pop(false)
	for i := len(tail) - 1; i >= 0; i-- {
		if err := s.undo(tail[i]); err != nil {
			return errors.Mark(errors.Wrap(err, "rollback"), btree.ErrStructuralCorruption)
		}
	}
	m.metrics.Rollbacks.Inc()
	tracer().Debugf("snapshot %d: rolled back %d changes", s.id, len(tail))
	return nil
}

func (s *Snapshot) undo(d delta) error {
	m := s.mem
	switch d.op {
	case opCreate:
		m.delete(d.id)
	case opRef:
		sl, err := m.get(d.id)
		if err != nil {
			return err
		}
		sl.refs--
	case opUnref:
		sl, err := m.get(d.id)
		if err != nil {
			return err
		}
		sl.refs++
	case opFree:
		m.put(d.node, 0)
	case opImage:
		sl, err := m.get(d.id)
		if err != nil {
			return err
		}
		sl.node = d.node
	case opRoot:
		if d.prev == btree.NoBlock {
			delete(s.roots, d.name)
		} else {
			s.roots[d.name] = d.prev
		}
	}
	return nil
}

// --- Arena changes, called with mu held -----------------------------------

func (s *Snapshot) ref(id btree.BlockID) error {
	if err := s.mem.ref(id); err != nil {
		return err
	}
	s.journal.record(delta{op: opRef, id: id})
	return nil
}

func (s *Snapshot) unref(id btree.BlockID) error {
	sl, err := s.mem.get(id)
	if err != nil {
		return err
	}
	if sl.refs <= 0 {
		return errors.Wrapf(btree.ErrStructuralCorruption, "unref of unreferenced block %d", id)
	}
	sl.refs--
	s.journal.record(delta{op: opUnref, id: id})
	if sl.refs == 0 {
		return s.free(sl.node)
	}
	return nil
}

// free removes an unreferenced block after dropping its child references.
func (s *Snapshot) free(n btree.Node) error {
	for _, child := range n.Children() {
		if err := s.unref(child); err != nil {
			return err
		}
	}
	id := n.Header().ID
	s.mem.delete(id)
	s.journal.record(delta{op: opFree, id: id, node: n})
	s.mem.metrics.Freed.Inc()
	return nil
}

// --- Lifecycle ------------------------------------------------------------

// Seal commits the snapshot. Under copy-on-write it becomes read-only and
// may be branched; in place, dirty markers are cleared and the snapshot
// stays writable. Subscribers receive a CommitEvent.
func (s *Snapshot) Seal() error {
	if s.journal.active() {
		return errors.Wrapf(ErrSavepoint, "seal with %d open savepoints", s.journal.depth())
	}
	m := s.mem
	m.mu.Lock()
	if err := s.checkWritable(); err != nil {
		m.mu.Unlock()
		return err
	}
	if s.CopyOnWrite() {
		s.committed = true
		m.committed[s.id] = true
	} else {
		m.arena.All(func(_ btree.BlockID, sl *slot) bool {
			sl.node.Header().Dirty = false
			return true
		})
	}
	ev := CommitEvent{
		Snapshot: s.id,
		Parent:   s.parent,
		Label:    s.label,
		Roots:    maps.Clone(s.roots),
		Live:     m.arena.Len(),
	}
	m.mu.Unlock()
	m.cast.Pub(ev)
	tracer().Infof("sealed snapshot %d (%s), %d live blocks", s.id, s.label, ev.Live)
	return nil
}

// Drop releases the roots of the snapshot. Blocks no other snapshot
// references are freed. A dropped snapshot cannot be used any more.
func (s *Snapshot) Drop() error {
	if s.journal.active() {
		return errors.Wrapf(ErrSavepoint, "drop with %d open savepoints", s.journal.depth())
	}
	m := s.mem
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.dropped {
		return nil
	}
	for name, id := range s.roots {
		if err := s.unref(id); err != nil {
			return errors.Wrapf(err, "dropping root %q of snapshot %d", name, s.id)
		}
	}
	s.roots = make(map[string]btree.BlockID)
	s.dropped = true
	tracer().Debugf("dropped snapshot %d, %d live blocks", s.id, m.arena.Len())
	return nil
}
