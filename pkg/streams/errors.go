package streams

import "errors"

var (
	// ErrMissing is returned when no stream was supplied.
	ErrMissing = errors.New("stream is required")
	// ErrUnknown is returned for a stream that is not registered.
	ErrUnknown = errors.New("unknown stream")
)
