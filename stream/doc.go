/*
Package stream provides the packed columns stored inside tree leaves.

A leaf of a streamtree holds one or more streams. Each stream is an
independently packed column of unsigned values with a fixed bit width, plus an
optional internal index used to answer ranged sums, rank and select queries
without scanning the whole column.

Streams of one leaf are row aligned: entry i of a leaf is the tuple of value i
of every stream.

Every stream kind aggregates into a Summary, which is the per-subtree
statistic cached by branch nodes. Summaries form a monoid per kind (see
Combine and Zero).

Space-changing operations leave the internal index stale. Clients must call
Reindex before relying on Sum, Search, Rank, Select or Summary.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package stream

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
