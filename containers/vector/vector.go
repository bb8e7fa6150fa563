// Package vector implements a positional vector of unsigned values with
// prefix sums.
//
// Branch nodes cache the total of their subtrees, so prefix sums and the
// search for the position where a running total is reached take logarithmic
// time.
package vector

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/stream"
)

// Options configures a vector.
type Options struct {
	// Name selects the root of the vector at the store. Defaults to "vector".
	Name string
	// Bits is the packed width of a value. Defaults to 64.
	Bits int
}

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "vector"
	}
	if o.Bits == 0 {
		o.Bits = 64
	}
	return o
}

// Vector is a sequence of values with prefix sums.
type Vector struct {
	tree *btree.Tree
}

// New opens the vector named by opts on bs.
func New(bs btree.BlockStore, opts Options) (*Vector, error) {
	opts = opts.normalized()
	layout := btree.Layout{
		Name:    "vector",
		Streams: []stream.Descriptor{{Kind: stream.Sum, Bits: opts.Bits}},
	}
	schema, err := bs.Registry().Register(layout)
	if err != nil {
		return nil, errors.Wrap(err, "vector")
	}
	tree, err := btree.New(bs, schema, btree.Config{Name: opts.Name})
	if err != nil {
		return nil, errors.Wrap(err, "vector")
	}
	return &Vector{tree: tree}, nil
}

// Tree returns the underlying tree.
func (v *Vector) Tree() *btree.Tree { return v.tree }

// Len returns the number of values.
func (v *Vector) Len() int { return v.tree.Len() }

// Append adds values at the end.
func (v *Vector) Append(values ...uint64) error {
	return v.InsertAt(v.Len(), values...)
}

// InsertAt inserts values before position pos.
func (v *Vector) InsertAt(pos int, values ...uint64) error {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return v.tree.InsertAt(pos, btree.Entry{values[0]})
	}
	entries := make([]btree.Entry, len(values))
	for i, x := range values {
		entries[i] = btree.Entry{x}
	}
	_, err := v.tree.LoadSlice(pos, entries)
	return err
}

// Remove removes n values starting at pos.
func (v *Vector) Remove(pos, n int) error {
	return v.tree.RemoveRange(pos, n)
}

func (v *Vector) at(pos int) (*btree.Iterator, error) {
	if pos < 0 || pos >= v.Len() {
		return nil, errors.Wrapf(btree.ErrIndexOutOfBounds, "value %d of %d", pos, v.Len())
	}
	return v.tree.Seek(pos)
}

// Get returns the value at pos.
func (v *Vector) Get(pos int) (uint64, error) {
	it, err := v.at(pos)
	if err != nil {
		return 0, err
	}
	x, _ := it.Value(0)
	return x, nil
}

// Set overwrites the value at pos.
func (v *Vector) Set(pos int, x uint64) error {
	it, err := v.at(pos)
	if err != nil {
		return err
	}
	return v.tree.Update(it, btree.Entry{x})
}

// Total returns the sum of all values.
func (v *Vector) Total() (uint64, error) {
	s, err := v.tree.Summary()
	if err != nil {
		return 0, err
	}
	return s[0].Value(), nil
}

// Prefix returns the sum of the values in [0, pos).
func (v *Vector) Prefix(pos int) (uint64, error) {
	if pos < 0 || pos > v.Len() {
		return 0, errors.Wrapf(btree.ErrIndexOutOfBounds, "prefix up to %d of %d", pos, v.Len())
	}
	it, err := v.tree.Seek(pos)
	if err != nil {
		return 0, err
	}
	leaf := it.Path().Leaf()
	return btree.UptreePrefix(it.Path())[0].Value() + leaf.Stream(0).Sum(0, it.Idx()), nil
}

// Search returns the first position at which the running total, including
// the value there, reaches target, together with the sum of the values
// before it. The flag is false if the total of the vector is smaller than
// target.
func (v *Vector) Search(target uint64) (int, uint64, bool, error) {
	it, prefix, err := v.tree.FindSum(0, stream.GE, target)
	if err != nil {
		return 0, 0, false, err
	}
	if it.IsAfterEnd() {
		return v.Len(), prefix, false, nil
	}
	return it.EntryOffset(), prefix, true, nil
}

// Values copies the values in [from, to).
func (v *Vector) Values(from, to int) ([]uint64, error) {
	if from < 0 || to > v.Len() || from > to {
		return nil, errors.Wrapf(btree.ErrIndexOutOfBounds, "values [%d,%d) of %d", from, to, v.Len())
	}
	out := make([]uint64, 0, to-from)
	if from == to {
		return out, nil
	}
	it, err := v.tree.Seek(from)
	if err != nil {
		return nil, err
	}
	for {
		c := it.Chunk()
		vals := c.Values(0)[it.EntryOffsetInChunk():]
		if rest := to - from - len(out); len(vals) > rest {
			vals = vals[:rest]
		}
		out = append(out, vals...)
		if len(out) == to-from {
			return out, nil
		}
		if ok, err := it.NextChunk(); err != nil || !ok {
			return out, err
		}
	}
}
