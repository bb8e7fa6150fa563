package btree

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/stream"
)

// FindShuttle searches a Key stream for the first entry whose key satisfies
// Mode. Keys must be in ascending order over the whole tree.
type FindShuttle struct {
	Stream int
	Mode   stream.SearchMode
	Key    uint64
	// Pos is the global position of the result.
	Pos int
	// Exact reports whether the entry found holds Key.
	Exact bool
}

var _ Shuttle = (*FindShuttle)(nil)

func (f *FindShuttle) Direction() Direction { return Forward }

func (f *FindShuttle) Start(st *IteratorState) { f.Exact = false }

func (f *FindShuttle) Branch(n *BranchNode, start int) BranchResult {
	for i := start; i < n.Size(); i++ {
		s := n.entries[i][f.Stream]
		if s.Count() > 0 && f.Mode.Reached(s.Value(), f.Key) {
			return BranchResult{Idx: i, Status: Found}
		}
		f.Pos += int(s.Count())
	}
	return BranchResult{Idx: n.Size(), Status: NotFound}
}

func (f *FindShuttle) FixTarget(n *BranchNode, from, to int) {
	f.Pos -= n.count(from, to)
}

func (f *FindShuttle) Leaf(n *LeafNode, start int) LeafResult {
	start = max(start, 0)
	idx, skipped := n.streams[f.Stream].Search(f.Mode, start, f.Key)
	f.Pos += int(skipped)
	if idx < n.Size() {
		return LeafResult{Idx: idx, Status: Found}
	}
	return LeafResult{Idx: idx, Status: NotFound}
}

func (f *FindShuttle) Finish(st *IteratorState) {
	leaf := st.Path.Leaf()
	f.Exact = st.Idx >= 0 && st.Idx < leaf.Size() && leaf.Value(f.Stream, st.Idx) == f.Key
}

// SumFindShuttle searches a Sum stream for the first entry where the running
// total reaches Target under Mode.
type SumFindShuttle struct {
	Stream int
	Mode   stream.SearchMode
	Target uint64
	// Prefix is the total of the values before the result.
	Prefix uint64
	// Pos is the global position of the result.
	Pos int
}

var _ Shuttle = (*SumFindShuttle)(nil)

func (f *SumFindShuttle) Direction() Direction { return Forward }

func (f *SumFindShuttle) Start(st *IteratorState) {}

func (f *SumFindShuttle) Branch(n *BranchNode, start int) BranchResult {
	for i := start; i < n.Size(); i++ {
		s := n.entries[i][f.Stream]
		if s.Count() > 0 && f.Mode.Reached(f.Prefix+s.Value(), f.Target) {
			return BranchResult{Idx: i, Status: Found}
		}
		f.Prefix += s.Value()
		f.Pos += int(s.Count())
	}
	return BranchResult{Idx: n.Size(), Status: NotFound}
}

func (f *SumFindShuttle) FixTarget(n *BranchNode, from, to int) {
	for i := from; i < to; i++ {
		s := n.entries[i][f.Stream]
		f.Prefix -= s.Value()
		f.Pos -= int(s.Count())
	}
}

func (f *SumFindShuttle) Leaf(n *LeafNode, start int) LeafResult {
	start = max(start, 0)
	idx, pre := n.streams[f.Stream].Search(f.Mode, start, f.Target-f.Prefix)
	f.Prefix += pre
	f.Pos += idx - start
	if idx < n.Size() {
		return LeafResult{Idx: idx, Status: Found}
	}
	return LeafResult{Idx: idx, Status: NotFound}
}

func (f *SumFindShuttle) Finish(st *IteratorState) {}

// SkipForward moves Remaining positions forward.
type SkipForward struct {
	Remaining int
}

var _ Shuttle = (*SkipForward)(nil)

func (s *SkipForward) Direction() Direction { return Forward }

func (s *SkipForward) Start(st *IteratorState) {}

func (s *SkipForward) Branch(n *BranchNode, start int) BranchResult {
	for i := start; i < n.Size(); i++ {
		c := n.entries[i].Count()
		if s.Remaining < c {
			return BranchResult{Idx: i, Status: Found}
		}
		s.Remaining -= c
	}
	return BranchResult{Idx: n.Size(), Status: NotFound}
}

func (s *SkipForward) FixTarget(n *BranchNode, from, to int) {
	s.Remaining += n.count(from, to)
}

func (s *SkipForward) Leaf(n *LeafNode, start int) LeafResult {
	size := n.Size()
	start = min(start, size)
	if start+s.Remaining < size {
		idx := start + s.Remaining
		s.Remaining = 0
		return LeafResult{Idx: idx, Status: Found}
	}
	s.Remaining -= size - start
	return LeafResult{Idx: size, Status: NotFound}
}

func (s *SkipForward) Finish(st *IteratorState) {}

// SkipBackward moves Remaining positions backward.
type SkipBackward struct {
	Remaining int
}

var _ Shuttle = (*SkipBackward)(nil)

func (s *SkipBackward) Direction() Direction { return Backward }

func (s *SkipBackward) Start(st *IteratorState) {}

func (s *SkipBackward) Branch(n *BranchNode, end int) BranchResult {
	for i := end - 1; i >= 0; i-- {
		c := n.entries[i].Count()
		if s.Remaining <= c {
			return BranchResult{Idx: i, Status: Found}
		}
		s.Remaining -= c
	}
	return BranchResult{Idx: -1, Status: NotFound}
}

func (s *SkipBackward) FixTarget(n *BranchNode, from, to int) {
	s.Remaining += n.count(from, to)
}

func (s *SkipBackward) Leaf(n *LeafNode, end int) LeafResult {
	end = max(min(end, n.Size()), 0)
	if s.Remaining <= end {
		idx := end - s.Remaining
		s.Remaining = 0
		return LeafResult{Idx: idx, Status: Found}
	}
	s.Remaining -= end
	return LeafResult{Idx: -1, Status: NotFound}
}

func (s *SkipBackward) Finish(st *IteratorState) {}

// RankShuttle counts the occurrences of Symbol in a Symbol stream before
// global position Pos.
type RankShuttle struct {
	Stream int
	Symbol int
	Pos    int
	// Rank is the result.
	Rank      int
	remaining int
}

var _ Shuttle = (*RankShuttle)(nil)

func (r *RankShuttle) Direction() Direction { return Forward }

func (r *RankShuttle) Start(st *IteratorState) {
	r.Rank = 0
	r.remaining = r.Pos
}

func (r *RankShuttle) Branch(n *BranchNode, start int) BranchResult {
	for i := start; i < n.Size(); i++ {
		e := n.entries[i]
		if r.remaining < e.Count() {
			return BranchResult{Idx: i, Status: Found}
		}
		r.remaining -= e.Count()
		r.Rank += int(e[r.Stream].Symbols(r.Symbol))
	}
	return BranchResult{Idx: n.Size(), Status: NotFound}
}

func (r *RankShuttle) FixTarget(n *BranchNode, from, to int) {
	for i := from; i < to; i++ {
		e := n.entries[i]
		r.remaining += e.Count()
		r.Rank -= int(e[r.Stream].Symbols(r.Symbol))
	}
}

func (r *RankShuttle) Leaf(n *LeafNode, start int) LeafResult {
	upTo := min(r.remaining, n.Size())
	r.Rank += n.streams[r.Stream].Rank(uint64(r.Symbol), upTo)
	r.remaining -= upTo
	if upTo < n.Size() {
		return LeafResult{Idx: upTo, Status: Found}
	}
	return LeafResult{Idx: n.Size(), Status: NotFound}
}

func (r *RankShuttle) Finish(st *IteratorState) {}

// SelectShuttle finds the K-th (1-based) occurrence of Symbol in a Symbol
// stream.
type SelectShuttle struct {
	Stream int
	Symbol int
	K      int
	// Pos is the global position of the occurrence found.
	Pos       int
	remaining int
}

var _ Shuttle = (*SelectShuttle)(nil)

func (s *SelectShuttle) Direction() Direction { return Forward }

func (s *SelectShuttle) Start(st *IteratorState) {
	s.Pos = 0
	s.remaining = s.K
}

func (s *SelectShuttle) Branch(n *BranchNode, start int) BranchResult {
	for i := start; i < n.Size(); i++ {
		e := n.entries[i]
		occ := int(e[s.Stream].Symbols(s.Symbol))
		if s.remaining <= occ {
			return BranchResult{Idx: i, Status: Found}
		}
		s.remaining -= occ
		s.Pos += e.Count()
	}
	return BranchResult{Idx: n.Size(), Status: NotFound}
}

func (s *SelectShuttle) FixTarget(n *BranchNode, from, to int) {
	for i := from; i < to; i++ {
		e := n.entries[i]
		s.remaining += int(e[s.Stream].Symbols(s.Symbol))
		s.Pos -= e.Count()
	}
}

func (s *SelectShuttle) Leaf(n *LeafNode, start int) LeafResult {
	if idx, ok := n.streams[s.Stream].Select(uint64(s.Symbol), s.remaining); ok {
		s.Pos += idx
		return LeafResult{Idx: idx, Status: Found}
	}
	s.Pos += n.Size()
	return LeafResult{Idx: n.Size(), Status: NotFound}
}

func (s *SelectShuttle) Finish(st *IteratorState) {}

// UptreeShuttle accumulates the aggregate of everything before a position.
// It is a backward shuttle: every hook consumes the children (rows) in front
// of start. It is driven by RideUp.
type UptreeShuttle struct {
	// Prefix is the aggregate of all entries before the position.
	Prefix BranchNodeEntry
	descs  []stream.Descriptor
}

var _ Shuttle = (*UptreeShuttle)(nil)

func (u *UptreeShuttle) Direction() Direction { return Backward }

func (u *UptreeShuttle) Start(st *IteratorState) {
	u.descs = st.Path.Leaf().schema.Layout.Streams
	u.Prefix = make(BranchNodeEntry, len(u.descs))
	for i, d := range u.descs {
		u.Prefix[i] = stream.Zero(d)
	}
}

func (u *UptreeShuttle) Branch(n *BranchNode, start int) BranchResult {
	u.combine(n.summaryRange(0, start))
	return BranchResult{Idx: 0, Status: NotFound}
}

// FixTarget is not needed: an upward ride never descends.
func (u *UptreeShuttle) FixTarget(n *BranchNode, from, to int) {}

func (u *UptreeShuttle) Leaf(n *LeafNode, start int) LeafResult {
	start = max(start, 0)
	for i, s := range n.streams {
		stream.Combine(u.descs[i], u.Prefix[i], s.SummaryRange(0, start))
	}
	return LeafResult{Idx: 0, Status: NotFound}
}

func (u *UptreeShuttle) Finish(st *IteratorState) {}

func (u *UptreeShuttle) combine(e BranchNodeEntry) {
	for i, d := range u.descs {
		stream.Combine(d, u.Prefix[i], e[i])
	}
}

// RideUp drives a backward shuttle from the leaf of the state up to the
// root. Each branch hook gets the index of the child the path passes
// through. The leaf hook runs only if withLeaf is set. The ride never
// descends, so the state is left unchanged.
func RideUp(st *IteratorState, sh Shuttle, withLeaf bool) {
	assert(sh.Direction() == Backward, "RideUp with a forward shuttle")
	sh.Start(st)
	p := st.Path
	if withLeaf {
		sh.Leaf(p.Leaf(), st.Idx)
	}
	for l := 1; l < p.Height(); l++ {
		sh.Branch(p.Branch(l), p.idx[l-1])
	}
	sh.Finish(st)
}

// UptreePrefix returns the aggregate of all entries before the leaf of p.
func UptreePrefix(p *TreePath) BranchNodeEntry {
	sh := &UptreeShuttle{}
	RideUp(&IteratorState{Path: p}, sh, false)
	return sh.Prefix
}

// --- Queries ---------------------------------------------------------------

// Seek returns an iterator at global position pos, 0 <= pos <= Len(). At
// Len() the iterator is after the end.
func (t *Tree) Seek(pos int) (*Iterator, error) {
	total, err := t.Count()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos > total {
		return nil, errors.Wrapf(ErrIndexOutOfBounds, "seek to %d of %d", pos, total)
	}
	st, err := t.Descend(&SkipForward{Remaining: pos})
	if err != nil {
		return nil, err
	}
	return newIterator(t, st), nil
}

// Begin returns an iterator at the first entry.
func (t *Tree) Begin() (*Iterator, error) { return t.Seek(0) }

// End returns an iterator after the last entry.
func (t *Tree) End() (*Iterator, error) {
	total, err := t.Count()
	if err != nil {
		return nil, err
	}
	return t.Seek(total)
}

func (t *Tree) checkStream(s int, kind stream.Kind) error {
	streams := t.schema.Layout.Streams
	if s < 0 || s >= len(streams) {
		return errors.Wrapf(ErrIndexOutOfBounds, "stream %d of %d", s, len(streams))
	}
	if streams[s].Kind != kind {
		return errors.Wrapf(stream.ErrKindMismatch, "stream %d is %s, need %s", s, streams[s].Kind, kind)
	}
	return nil
}

// Find positions an iterator at the first entry whose key in Key stream s
// satisfies mode. The flag reports an exact key match. If no key qualifies,
// the iterator is after the end.
func (t *Tree) Find(s int, mode stream.SearchMode, key uint64) (*Iterator, bool, error) {
	if err := t.checkStream(s, stream.Key); err != nil {
		return nil, false, err
	}
	sh := &FindShuttle{Stream: s, Mode: mode, Key: key}
	st, err := t.Descend(sh)
	if err != nil {
		return nil, false, err
	}
	return newIterator(t, st), sh.Exact, nil
}

// FindSum positions an iterator at the first entry where the running total
// of Sum stream s reaches target under mode. It also returns the total of
// the values before that entry.
func (t *Tree) FindSum(s int, mode stream.SearchMode, target uint64) (*Iterator, uint64, error) {
	if err := t.checkStream(s, stream.Sum); err != nil {
		return nil, 0, err
	}
	sh := &SumFindShuttle{Stream: s, Mode: mode, Target: target}
	st, err := t.Descend(sh)
	if err != nil {
		return nil, 0, err
	}
	return newIterator(t, st), sh.Prefix, nil
}

// Rank counts the occurrences of sym in Symbol stream s before pos.
func (t *Tree) Rank(s, sym, pos int) (int, error) {
	if err := t.checkStream(s, stream.Symbol); err != nil {
		return 0, err
	}
	total, err := t.Count()
	if err != nil {
		return 0, err
	}
	if pos < 0 || pos > total {
		return 0, errors.Wrapf(ErrIndexOutOfBounds, "rank up to %d of %d", pos, total)
	}
	sh := &RankShuttle{Stream: s, Symbol: sym, Pos: pos}
	if _, err := t.Descend(sh); err != nil {
		return 0, err
	}
	return sh.Rank, nil
}

// Select positions an iterator at the k-th (1-based) occurrence of sym in
// Symbol stream s. The flag is false if there are fewer than k occurrences.
func (t *Tree) Select(s, sym, k int) (*Iterator, bool, error) {
	if err := t.checkStream(s, stream.Symbol); err != nil {
		return nil, false, err
	}
	if k <= 0 {
		return nil, false, errors.Wrapf(ErrIndexOutOfBounds, "select occurrence %d", k)
	}
	sh := &SelectShuttle{Stream: s, Symbol: sym, K: k}
	st, err := t.Descend(sh)
	if err != nil {
		return nil, false, err
	}
	it := newIterator(t, st)
	return it, !it.IsAfterEnd(), nil
}
