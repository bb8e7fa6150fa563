package stream

// packed is a bit-packed array of unsigned values of a fixed width.
type packed struct {
	bits  int
	n     int
	words []uint64
}

func newPacked(bits int) packed {
	return packed{bits: bits}
}

func (p *packed) mask() uint64 {
	if p.bits == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(p.bits)) - 1
}

func (p *packed) get(i int) uint64 {
	if p.bits == 64 {
		return p.words[i]
	}
	bit := i * p.bits
	w, off := bit>>6, uint(bit&63)
	v := p.words[w] >> off
	if off+uint(p.bits) > 64 {
		v |= p.words[w+1] << (64 - off)
	}
	return v & p.mask()
}

func (p *packed) set(i int, v uint64) {
	m := p.mask()
	assert(v&^m == 0, "packed value exceeds stream bit width")
	if p.bits == 64 {
		p.words[i] = v
		return
	}
	bit := i * p.bits
	w, off := bit>>6, uint(bit&63)
	p.words[w] = p.words[w]&^(m<<off) | v<<off
	if off+uint(p.bits) > 64 {
		spill := 64 - off
		p.words[w+1] = p.words[w+1]&^(m>>spill) | v>>spill
	}
}

// resize sets the logical length, growing the word buffer when needed.
// New slots read as zero.
func (p *packed) resize(n int) {
	need := (n*p.bits + 63) / 64
	if need > len(p.words) {
		if need <= cap(p.words) {
			p.words = p.words[:need]
		} else {
			grown := make([]uint64, need, need+need/2+1)
			copy(grown, p.words)
			p.words = grown
		}
	}
	p.n = n
}

func (p *packed) insertSpace(pos, k int) {
	assert(pos >= 0 && pos <= p.n && k >= 0, "packed insertSpace out of range")
	if k == 0 {
		return
	}
	old := p.n
	p.resize(old + k)
	for i := old - 1; i >= pos; i-- {
		p.set(i+k, p.get(i))
	}
	for i := pos; i < pos+k; i++ {
		p.set(i, 0)
	}
}

func (p *packed) removeSpace(pos, k int) {
	assert(pos >= 0 && k >= 0 && pos+k <= p.n, "packed removeSpace out of range")
	if k == 0 {
		return
	}
	for i := pos; i+k < p.n; i++ {
		p.set(i, p.get(i+k))
	}
	for i := p.n - k; i < p.n; i++ {
		p.set(i, 0)
	}
	p.n -= k
	p.words = p.words[:(p.n*p.bits+63)/64]
}

func (p *packed) clone() packed {
	return packed{
		bits:  p.bits,
		n:     p.n,
		words: append([]uint64(nil), p.words...),
	}
}
