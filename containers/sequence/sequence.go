package sequence

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/btree"
	"github.com/npillmayer/streamtree/stream"
)

// ErrSymbol signals a symbol outside of the alphabet.
var ErrSymbol = errors.New("sequence: symbol outside of alphabet")

// Options configures a sequence.
type Options struct {
	// Name selects the root of the sequence at the store. Defaults to
	// "sequence".
	Name string
	// Bits is the alphabet width, 1..8. Defaults to 8.
	Bits int
}

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "sequence"
	}
	if o.Bits == 0 {
		o.Bits = stream.MaxSymbolBits
	}
	return o
}

// Sequence is a positional sequence of symbols.
type Sequence struct {
	opts     Options
	alphabet int
	tree     *btree.Tree
}

// New opens the sequence named by opts on bs. Wide alphabets need large
// blocks: an 8 bit alphabet caches 256 counts per child.
func New(bs btree.BlockStore, opts Options) (*Sequence, error) {
	opts = opts.normalized()
	layout := btree.Layout{
		Name:    "sequence",
		Streams: []stream.Descriptor{{Kind: stream.Symbol, Bits: opts.Bits}},
	}
	schema, err := bs.Registry().Register(layout)
	if err != nil {
		return nil, errors.Wrap(err, "sequence")
	}
	tree, err := btree.New(bs, schema, btree.Config{Name: opts.Name})
	if err != nil {
		return nil, errors.Wrapf(err, "sequence with %d bit alphabet", opts.Bits)
	}
	return &Sequence{opts: opts, alphabet: layout.Streams[0].Alphabet(), tree: tree}, nil
}

// Tree returns the underlying tree.
func (s *Sequence) Tree() *btree.Tree { return s.tree }

// Len returns the number of symbols.
func (s *Sequence) Len() int { return s.tree.Len() }

// Alphabet returns the number of distinct symbols.
func (s *Sequence) Alphabet() int { return s.alphabet }

func (s *Sequence) checkSymbol(sym int) error {
	if sym < 0 || sym >= s.alphabet {
		return errors.Wrapf(ErrSymbol, "symbol %d, alphabet of %d", sym, s.alphabet)
	}
	return nil
}

// Append adds symbols at the end of the sequence using bulk insertion.
func (s *Sequence) Append(symbols ...byte) error {
	return s.InsertAt(s.Len(), symbols...)
}

// InsertAt inserts symbols before position pos.
func (s *Sequence) InsertAt(pos int, symbols ...byte) error {
	entries := make([]btree.Entry, len(symbols))
	for i, sym := range symbols {
		if err := s.checkSymbol(int(sym)); err != nil {
			return err
		}
		entries[i] = btree.Entry{uint64(sym)}
	}
	if len(entries) == 1 {
		return s.tree.InsertAt(pos, entries[0])
	}
	_, err := s.tree.LoadSlice(pos, entries)
	return err
}

// Remove removes n symbols starting at pos.
func (s *Sequence) Remove(pos, n int) error {
	return s.tree.RemoveRange(pos, n)
}

// At returns the symbol at pos.
func (s *Sequence) At(pos int) (byte, error) {
	if pos < 0 || pos >= s.Len() {
		return 0, errors.Wrapf(btree.ErrIndexOutOfBounds, "symbol %d of %d", pos, s.Len())
	}
	it, err := s.tree.Seek(pos)
	if err != nil {
		return 0, err
	}
	v, _ := it.Value(0)
	return byte(v), nil
}

// Rank counts the occurrences of sym in positions [0, pos).
func (s *Sequence) Rank(pos, sym int) (int, error) {
	if err := s.checkSymbol(sym); err != nil {
		return 0, err
	}
	return s.tree.Rank(0, sym, pos)
}

// Select returns the position of the k-th occurrence of sym, counting from
// zero, so that Select(Rank(p, sym), sym) == p whenever At(p) == sym. The
// flag is false if sym occurs k times or fewer.
func (s *Sequence) Select(k, sym int) (int, bool, error) {
	if err := s.checkSymbol(sym); err != nil {
		return 0, false, err
	}
	if k < 0 {
		return 0, false, errors.Wrapf(btree.ErrIndexOutOfBounds, "select occurrence %d", k)
	}
	it, ok, err := s.tree.Select(0, sym, k+1)
	if err != nil || !ok {
		return 0, false, err
	}
	return it.EntryOffset(), true, nil
}

// Count returns the number of occurrences of sym.
func (s *Sequence) Count(sym int) (int, error) {
	return s.Rank(s.Len(), sym)
}

// Symbols copies the symbols in [from, to).
func (s *Sequence) Symbols(from, to int) ([]byte, error) {
	if from < 0 || to > s.Len() || from > to {
		return nil, errors.Wrapf(btree.ErrIndexOutOfBounds, "symbols [%d,%d) of %d", from, to, s.Len())
	}
	out := make([]byte, 0, to-from)
	if from == to {
		return out, nil
	}
	it, err := s.tree.Seek(from)
	if err != nil {
		return nil, err
	}
	for len(out) < to-from {
		c := it.Chunk()
		for i := it.EntryOffsetInChunk(); i < c.Len() && len(out) < to-from; i++ {
			out = append(out, byte(c.Value(0, i)))
		}
		if ok, err := it.NextChunk(); err != nil || !ok {
			return out, err
		}
	}
	return out, nil
}
