package session

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrConnection is a transport-level failure. The session is no longer
	// usable; the client continues local-only.
	ErrConnection = errors.New("connection error")

	// ErrHandshake means the relay did not open with a color assignment
	// in time.
	ErrHandshake = errors.New("handshake failed")

	// ErrSessionUsed is returned when Connect is called twice on one
	// session. Reconnecting needs a new Session.
	ErrSessionUsed = errors.New("session already used")
)
