/*
Package omap implements an ordered map from unsigned keys to unsigned values
on top of a streamtree.

Leaves of the map hold two row aligned streams, a Key stream of ascending
keys and an Array stream of values. Keys are unique: putting a key that is
already present overwrites its value.

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer.com>

Please refer to the License file for details.
*/
package omap

import "github.com/npillmayer/schuko/tracing"

// tracer writes to trace with key 'streamtree.omap'
func tracer() tracing.Trace {
	return tracing.Select("streamtree.omap")
}
