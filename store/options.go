package store

import (
	"github.com/cockroachdb/errors"
	"github.com/npillmayer/streamtree/btree"
	"github.com/prometheus/client_golang/prometheus"
)

// Profile selects how snapshots write blocks.
type Profile int8

const (
	// COW clones every block not created by the writing snapshot before it
	// is modified.
	COW Profile = iota
	// InPlace modifies blocks directly and marks them dirty until the next
	// commit. Snapshots of an in-place store cannot be branched.
	InPlace
)

func (p Profile) String() string {
	if p == InPlace {
		return "in-place"
	}
	return "cow"
}

// DefaultBlockSize is the block size used when Options.BlockSize is zero.
const DefaultBlockSize = 4096

// defaultCacheBytes is the read cache budget used when Options.CacheBytes is
// zero.
const defaultCacheBytes = 8 << 20

// Options configures a Memory store.
type Options struct {
	// BlockSize is the byte size of new blocks.
	BlockSize int
	// Profile selects copy-on-write or in-place writes.
	Profile Profile
	// CacheBytes is the budget of the committed-block read cache. A negative
	// value disables the cache.
	CacheBytes int64
	// Registry is the dispatch table of the store. A new one is created if
	// it is nil.
	Registry *btree.Registry
	// Registerer receives the store metrics if set.
	Registerer prometheus.Registerer
}

func (opts Options) normalized() Options {
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.CacheBytes == 0 {
		opts.CacheBytes = defaultCacheBytes
	}
	if opts.Registry == nil {
		opts.Registry = btree.NewRegistry()
	}
	return opts
}

func (opts Options) validate() error {
	if opts.BlockSize < 256 {
		return errors.Wrapf(btree.ErrInvalidConfig, "block size %d, need at least 256", opts.BlockSize)
	}
	if opts.Profile != COW && opts.Profile != InPlace {
		return errors.Wrapf(btree.ErrInvalidConfig, "unknown store profile %d", opts.Profile)
	}
	return nil
}
