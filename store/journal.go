package store

import (
	"github.com/npillmayer/streamtree/btree"
)

type op int8

const (
	opCreate op = iota // block was allocated
	opRef              // reference count was incremented
	opUnref            // reference count was decremented
	opFree             // block was removed from the arena
	opImage            // block is about to be written in place
	opRoot             // a root was replaced
)

// delta is one journaled arena change. node holds the freed block for
// opFree and the before-image for opImage.
type delta struct {
	op   op
	id   btree.BlockID
	node btree.Node
	name string
	prev btree.BlockID
}

// journal records arena changes while savepoints are open.
type journal struct {
	deltas []delta
	marks  []int    // len(deltas) when each open savepoint began
	serial []uint64 // serial number of each open savepoint
	next   uint64
	// imaged maps a block to the serial of the savepoint in which its
	// before-image was taken.
	imaged map[btree.BlockID]uint64
}

func (j *journal) active() bool { return len(j.marks) > 0 }

func (j *journal) depth() int { return len(j.marks) }

func (j *journal) record(d delta) {
	if j.active() {
		j.deltas = append(j.deltas, d)
	}
}

func (j *journal) begin() btree.Savepoint {
	if j.imaged == nil {
		j.imaged = make(map[btree.BlockID]uint64)
	}
	j.next++
	j.marks = append(j.marks, len(j.deltas))
	j.serial = append(j.serial, j.next)
	return btree.Savepoint(len(j.marks))
}

// needsImage reports whether id has no before-image in the innermost
// savepoint yet, and records that it has one from now on.
func (j *journal) needsImage(id btree.BlockID) bool {
	if !j.active() {
		return false
	}
	cur := j.serial[len(j.serial)-1]
	if j.imaged[id] == cur {
		return false
	}
	j.imaged[id] = cur
	return true
}

// pop closes the innermost savepoint and returns the deltas recorded since
// it began. Deltas stay in the journal while an outer savepoint is open.
func (j *journal) pop(keep bool) []delta {
	n := len(j.marks) - 1
	mark := j.marks[n]
	j.marks = j.marks[:n]
	j.serial = j.serial[:n]
	var tail []delta
	if !keep {
		tail = j.deltas[mark:]
		j.deltas = j.deltas[:mark]
	}
	if !j.active() {
		j.deltas = j.deltas[:0]
		clear(j.imaged)
	}
	return tail
}
