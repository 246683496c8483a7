package service

import "errors"

var (
	// ErrProtocolViolation marks a remote event that cannot apply to this
	// keyboard (unknown key, spacer slot, unknown kind).
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrNotPlayable is returned for a local intent on a slot with no note.
	ErrNotPlayable = errors.New("key is not playable")
	// ErrStopped is returned once the synchronizer loop has ended.
	ErrStopped = errors.New("synchronizer stopped")
	// ErrNotStarted is returned by client operations before Start.
	ErrNotStarted = errors.New("client not started")
	// ErrNoRelay is returned by Connect when no relay url is configured.
	ErrNoRelay = errors.New("no relay configured")
	// ErrSuperseded is returned by Connect when a Disconnect, Stop or
	// newer Connect happened while it was dialing.
	ErrSuperseded = errors.New("connect superseded")
)
