/*
Package streamtree is a multi-stream, copy-on-write B-tree engine.

Streamtrees

A streamtree stores a sequence of entries in the leaves of a balanced tree.
Every entry is a row of unsigned values, one per stream of the tree's
layout. Streams are packed columns: plain arrays, columns with prefix sums,
ascending keys, or symbols of a small alphabet. Branch nodes cache a summary
of each subtree per stream (counts, totals, maximum keys, symbol counts), so
positional access, key search, prefix sums, rank and select all run in
logarithmic time.

Trees are built on a block store. Blocks are reference counted and shared
between snapshots. A writer works on a private snapshot and clones every
shared block it touches, so sealed snapshots are never modified and can be
read concurrently. Every mutation runs inside a savepoint of the store and is
rolled back as a whole if it fails.

Packages

	stream              packed columns, summaries and in-leaf search
	btree               nodes, dispatch, tree paths, insert/remove/split/merge,
	                    bulk insertion, shuttle traversal and iterators
	store               the in-memory block store with snapshots and journal
	containers/omap     an ordered map
	containers/sequence a symbol sequence with rank and select
	containers/vector   a vector with prefix sums
	cmd/streamtree      a command line tool to inspect demo trees

_________________________________________________________________________

BSD 3-Clause License

Copyright (c) 2020–26, Norbert Pillmayer

All rights reserved.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions are met:

1. Redistributions of source code must retain the above copyright notice, this
list of conditions and the following disclaimer.

2. Redistributions in binary form must reproduce the above copyright notice,
this list of conditions and the following disclaimer in the documentation
and/or other materials provided with the distribution.

3. Neither the name of the copyright holder nor the names of its
contributors may be used to endorse or promote products derived from
this software without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

*/
package streamtree
