/*
Package store implements the in-memory block store of streamtree.

A Memory store owns an arena of blocks, each with a reference count. Trees
work on a Snapshot of the store, which implements btree.BlockStore. A
snapshot holds one reference on each of its named roots; blocks are shared
between snapshots and freed when the last reference goes away.

Snapshots are created writable. Seal turns a snapshot read-only, after
which it may be branched into new writable snapshots sharing its blocks.
Under the copy-on-write profile a snapshot only ever writes blocks it created
itself, so committed blocks are never modified and may be read concurrently.

All changes made to the arena within a savepoint are journaled and can be
rolled back, restoring reference counts, block images, freed blocks and
roots.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package store

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'streamtree.store'
func tracer() tracing.Trace {
	return tracing.Select("streamtree.store")
}
