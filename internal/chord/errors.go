package chord

import "errors"

var (
	// ErrInvalidInput is returned by Add when the key list or the callback is unusable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned by Add after the manager has been closed.
	ErrClosed = errors.New("chord manager closed")
)
