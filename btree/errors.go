package btree

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidConfig signals an invalid tree configuration or layout.
	ErrInvalidConfig = errors.New("btree: invalid configuration")
	// ErrIndexOutOfBounds signals an invalid positional index.
	ErrIndexOutOfBounds = errors.New("btree: index out of bounds")
	// ErrInvalidEntry signals an entry that does not match the layout.
	ErrInvalidEntry = errors.New("btree: invalid entry")
	// ErrCapacity signals that a node cannot grow. It is handled by splitting
	// and never returned from a public operation.
	ErrCapacity = errors.New("btree: node capacity exceeded")
	// ErrStructuralCorruption signals a broken tree invariant. It is fatal.
	ErrStructuralCorruption = errors.New("btree: structural corruption")
	// ErrDispatchMismatch signals a node tag unknown to the registry. It is fatal.
	ErrDispatchMismatch = errors.New("btree: dispatch mismatch")
	// ErrBlockNotFound signals a block id unknown to the store.
	ErrBlockNotFound = errors.New("btree: block not found")
	// ErrImmutable signals a write to a block or snapshot that is read-only.
	ErrImmutable = errors.New("btree: immutable block")
	// ErrStaleIterator signals use of an iterator invalidated by a failed mutation.
	ErrStaleIterator = errors.New("btree: stale iterator")
	// ErrProviderFailed marks errors raised by a LeafProvider during batch insert.
	ErrProviderFailed = errors.New("btree: leaf provider failed")
)

// corruption marks err as structural corruption, keeping its message.
func corruption(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStructuralCorruption)
}
