package stream

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidDescriptor signals an unusable column description.
	ErrInvalidDescriptor = errors.New("stream: invalid descriptor")
	// ErrKindMismatch signals an operation between streams of different layout.
	ErrKindMismatch = errors.New("stream: kind mismatch")
	// ErrIndexOutOfBounds signals an invalid position inside a stream.
	ErrIndexOutOfBounds = errors.New("stream: index out of bounds")
)
