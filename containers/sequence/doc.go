/*
Package sequence implements a sequence of small symbols with rank and select
queries.

A Sequence stores symbols of an alphabet of 2^Bits symbols, Bits up to 8,
bit-packed in a single Symbol stream. Branch nodes cache per-symbol
occurrence counts for their subtrees, so Rank and Select run in logarithmic
time.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package sequence
