/*
Package btree is the structural core of streamtree: a balanced, multi-stream
B-tree whose nodes live in copy-on-write blocks of a BlockStore.

Leaves hold row-aligned packed streams (see package stream). Branches hold,
per child, a block id and a BranchNodeEntry, the aggregate of every stream of
the child subtree. The engine keeps these aggregates exact after every
mutation.

Parent links are never stored in nodes. A TreePath materializes the chain of
nodes from a leaf up to the root and is threaded through every mutation.
Writes go through AcquireWritable, which clones immutable blocks (or marks
them dirty for stores without copy-on-write) before handing them out.

Reads are expressed as Shuttles: stateful walkers with branch, leaf and
fix-target hooks, driven by a uniform up/down ride over a TreePath. Find,
skip, rank, select and prefix queries are shuttles; the Iterator builds on
them.

Every public mutating operation runs inside a store savepoint. If any step
fails, the savepoint is rolled back and no partially updated tree becomes
visible.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package btree

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'streamtree'
func tracer() tracing.Trace {
	return tracing.Select("streamtree")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
