package store

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"github.com/guiguan/caster"
	"github.com/npillmayer/streamtree/btree"
)

// slot is one arena cell.
type slot struct {
	node btree.Node
	refs int
}

// Memory is an in-memory block store. It is safe for concurrent use by one
// writing snapshot and any number of readers of committed snapshots.
type Memory struct {
	opts     Options
	registry *btree.Registry
	ownsReg  bool // registry was created by Open
	metrics  *Metrics
	cast     *caster.Caster // broadcaster for commit events
	cache    *ristretto.Cache[uint64, btree.Node]

	mu        sync.RWMutex
	arena     swiss.Map[btree.BlockID, *slot]
	nextBlock btree.BlockID
	nextSnap  btree.SnapshotID
	committed map[btree.SnapshotID]bool
	closed    bool
}

// Open creates an empty store.
func Open(opts Options) (*Memory, error) {
	ownsReg := opts.Registry == nil
	opts = opts.normalized()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		opts:      opts,
		registry:  opts.Registry,
		ownsReg:   ownsReg,
		metrics:   newMetrics(),
		cast:      caster.New(nil),
		committed: make(map[btree.SnapshotID]bool),
	}
	m.arena.Init(64)
	if opts.Registerer != nil {
		if err := m.metrics.register(opts.Registerer); err != nil {
			return nil, errors.Wrap(err, "registering store metrics")
		}
	}
	if opts.CacheBytes > 0 && opts.Profile == COW {
		cache, err := ristretto.NewCache(&ristretto.Config[uint64, btree.Node]{
			NumCounters: max(opts.CacheBytes/int64(opts.BlockSize)*10, 1000),
			MaxCost:     opts.CacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating block cache")
		}
		m.cache = cache
	}
	tracer().Debugf("opened %s store with block size %d", opts.Profile, opts.BlockSize)
	return m, nil
}

// Close releases the store. Subscribers of commit events see their channels
// closed. A registry created by Open is reset; one passed in through Options
// is left to its owner.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cast.Close()
	if m.cache != nil {
		m.cache.Close()
	}
	m.arena.Close()
	if m.ownsReg {
		m.registry.Reset()
	}
}

// Registry returns the dispatch table of the store.
func (m *Memory) Registry() *btree.Registry { return m.registry }

// Options returns the effective options.
func (m *Memory) Options() Options { return m.opts }

// Metrics returns the block counters.
func (m *Memory) Metrics() *Metrics { return m.metrics }

// NewSnapshot creates an empty writable snapshot.
func (m *Memory) NewSnapshot() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.newSnapshot(nil), nil
}

// Branch creates a writable snapshot sharing the roots of a committed parent.
func (m *Memory) Branch(parent *Snapshot) (*Snapshot, error) {
	if m.opts.Profile == InPlace {
		return nil, errors.Wrap(ErrUnsupported, "branching an in-place store")
	}
	if parent == nil || parent.mem != m {
		return nil, errors.Wrap(btree.ErrInvalidConfig, "parent snapshot belongs to another store")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if !parent.committed || parent.dropped {
		return nil, errors.Wrapf(ErrSnapshotState, "snapshot %d must be committed and live to branch", parent.id)
	}
	s := m.newSnapshot(parent)
	for name, id := range parent.roots {
		if err := m.ref(id); err != nil {
			return nil, err
		}
		s.roots[name] = id
	}
	tracer().Debugf("branched snapshot %d from %d", s.id, parent.id)
	return s, nil
}

func (m *Memory) newSnapshot(parent *Snapshot) *Snapshot {
	m.nextSnap++
	s := &Snapshot{
		mem:   m,
		id:    m.nextSnap,
		label: uuid.New(),
		roots: make(map[string]btree.BlockID),
	}
	if parent != nil {
		s.parent = parent.id
	}
	return s
}

// Subscribe returns a channel receiving a CommitEvent for every sealed
// snapshot. The channel is closed when ctx is done or the store is closed.
// Subscribers have to drain their channel: Seal waits for a full one.
func (m *Memory) Subscribe(ctx context.Context, capacity uint) (<-chan interface{}, error) {
	ch, ok := m.cast.Sub(ctx, capacity)
	if !ok {
		return nil, ErrClosed
	}
	return ch, nil
}

// LiveBlocks returns the number of blocks in the arena.
func (m *Memory) LiveBlocks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.arena.Len()
}

// RefCount returns the reference count of block id, or -1 if it does not
// exist.
func (m *Memory) RefCount(id btree.BlockID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sl, ok := m.arena.Get(id); ok {
		return sl.refs
	}
	return -1
}

// Blocks calls fn for every block of the arena, in no particular order.
func (m *Memory) Blocks(fn func(n btree.Node, refs int) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.arena.All(func(_ btree.BlockID, sl *slot) bool {
		return fn(sl.node, sl.refs)
	})
}

// --- Arena primitives, called with mu held --------------------------------

func (m *Memory) get(id btree.BlockID) (*slot, error) {
	if sl, ok := m.arena.Get(id); ok {
		return sl, nil
	}
	return nil, errors.Wrapf(btree.ErrBlockNotFound, "block %d", id)
}

func (m *Memory) alloc() btree.BlockID {
	m.nextBlock++
	return m.nextBlock
}

func (m *Memory) put(n btree.Node, refs int) {
	m.arena.Put(n.Header().ID, &slot{node: n, refs: refs})
	m.metrics.Live.Inc()
}

func (m *Memory) delete(id btree.BlockID) {
	m.arena.Delete(id)
	m.metrics.Live.Dec()
	if m.cache != nil {
		m.cache.Del(uint64(id))
	}
}

func (m *Memory) ref(id btree.BlockID) error {
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	sl.refs++
	return nil
}

// cacheable reports whether n may be served from the read cache: its
// creating snapshot was committed, so no one will ever write it again.
func (m *Memory) cacheable(n btree.Node) bool {
	return m.cache != nil && m.committed[n.Header().Snapshot]
}
