package omap

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/stream"
)

const (
	keyStream   = 0
	valueStream = 1
)

// Options configures a map.
type Options struct {
	// Name selects the root of the map at the store. Defaults to "omap".
	Name string
	// KeyBits and ValueBits are the packed widths of keys and values.
	// Both default to 64.
	KeyBits   int
	ValueBits int
}

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "omap"
	}
	if o.KeyBits == 0 {
		o.KeyBits = 64
	}
	if o.ValueBits == 0 {
		o.ValueBits = 64
	}
	return o
}

func (o Options) layout() btree.Layout {
	return btree.Layout{
		Name: "omap",
		Streams: []stream.Descriptor{
			{Kind: stream.Key, Bits: o.KeyBits},
			{Kind: stream.Array, Bits: o.ValueBits},
		},
	}
}

// Map is an ordered map with unique keys. It is not safe for concurrent
// mutation.
type Map struct {
	opts Options
	tree *btree.Tree
}

// New opens the map named by opts on bs. If bs already has a root of that
// name, the map operates on the existing entries.
func New(bs btree.BlockStore, opts Options) (*Map, error) {
	opts = opts.normalized()
	schema, err := bs.Registry().Register(opts.layout())
	if err != nil {
		return nil, errors.Wrap(err, "omap")
	}
	tree, err := btree.New(bs, schema, btree.Config{Name: opts.Name})
	if err != nil {
		return nil, errors.Wrap(err, "omap")
	}
	return &Map{opts: opts, tree: tree}, nil
}

// Tree returns the underlying tree.
func (m *Map) Tree() *btree.Tree { return m.tree }

// Len returns the number of keys.
func (m *Map) Len() int { return m.tree.Len() }

func (m *Map) find(key uint64) (*btree.Iterator, bool, error) {
	return m.tree.Find(keyStream, stream.GE, key)
}

// Put sets the value of key. It reports whether key was newly inserted.
func (m *Map) Put(key, value uint64) (bool, error) {
	it, exact, err := m.find(key)
	if err != nil {
		return false, err
	}
	if exact {
		return false, m.tree.Update(it, btree.Entry{key, value})
	}
	if err := m.tree.Insert(it, btree.Entry{key, value}); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value of key.
func (m *Map) Get(key uint64) (uint64, bool, error) {
	it, exact, err := m.find(key)
	if err != nil || !exact {
		return 0, false, err
	}
	v, _ := it.Value(valueStream)
	return v, true, nil
}

// Contains reports whether key is present.
func (m *Map) Contains(key uint64) (bool, error) {
	_, exact, err := m.find(key)
	return exact, err
}

// Delete removes key. It reports whether key was present.
func (m *Map) Delete(key uint64) (bool, error) {
	it, exact, err := m.find(key)
	if err != nil || !exact {
		return false, err
	}
	if err := m.tree.Remove(it); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRange removes all keys k with from <= k < to and returns how many
// were removed.
func (m *Map) DeleteRange(from, to uint64) (int, error) {
	if to <= from {
		return 0, nil
	}
	lo, _, err := m.find(from)
	if err != nil {
		return 0, err
	}
	hi, _, err := m.find(to)
	if err != nil {
		return 0, err
	}
	start, end := lo.EntryOffset(), hi.EntryOffset()
	if end <= start {
		return 0, nil
	}
	tracer().Debugf("omap %q: delete keys [%d,%d) at positions [%d,%d)", m.opts.Name, from, to, start, end)
	return end - start, m.tree.RemoveRange(start, end-start)
}

// Ascend calls fn for every key k >= from in ascending order, until fn
// returns false.
func (m *Map) Ascend(from uint64, fn func(key, value uint64) bool) error {
	it, _, err := m.find(from)
	if err != nil {
		return err
	}
	for !it.IsAfterEnd() {
		c := it.Chunk()
		keys, values := c.Values(keyStream), c.Values(valueStream)
		for i := it.EntryOffsetInChunk(); i < c.Len(); i++ {
			if !fn(keys[i], values[i]) {
				return nil
			}
		}
		ok, err := it.NextChunk()
		if err != nil || !ok {
			return err
		}
	}
	return nil
}

// Min returns the smallest key and its value.
func (m *Map) Min() (uint64, uint64, bool, error) {
	it, err := m.tree.Begin()
	if err != nil {
		return 0, 0, false, err
	}
	return entry(it)
}

// Max returns the largest key and its value.
func (m *Map) Max() (uint64, uint64, bool, error) {
	it, err := m.tree.End()
	if err != nil {
		return 0, 0, false, err
	}
	if err := it.Prev(1); err != nil {
		return 0, 0, false, err
	}
	return entry(it)
}

func entry(it *btree.Iterator) (uint64, uint64, bool, error) {
	e, ok := it.Entry()
	if !ok {
		return 0, 0, false, nil
	}
	return e[keyStream], e[valueStream], true, nil
}
