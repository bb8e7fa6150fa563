package store

import "github.com/cockroachdb/errors"

var (
	// ErrClosed signals use of a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrSnapshotState signals an operation not allowed in the current
	// state of a snapshot, like branching an uncommitted one.
	ErrSnapshotState = errors.New("store: invalid snapshot state")
	// ErrUnsupported signals an operation the store profile does not offer.
	ErrUnsupported = errors.New("store: unsupported by profile")
	// ErrSavepoint signals a savepoint closed out of order.
	ErrSavepoint = errors.New("store: savepoint out of order")
)
