package relay

import "errors"

var (
	// ErrStopped is returned once the hub has shut down.
	ErrStopped = errors.New("relay stopped")
	// ErrBackplane wraps failures talking to the shared backplane.
	ErrBackplane = errors.New("backplane error")
)
