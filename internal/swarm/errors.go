package swarm

import "errors"

var (
	// ErrInvalidConfig is returned by Run for unusable settings.
	ErrInvalidConfig = errors.New("invalid swarm config")

	// ErrNotSettled is returned when bots did not see each other in time.
	ErrNotSettled = errors.New("bots did not settle")

	// ErrUndelivered is returned when some bot missed events.
	ErrUndelivered = errors.New("events not delivered")

	// ErrStuckKeys is returned when keys stay pressed after every release.
	ErrStuckKeys = errors.New("keys left pressed")

	// ErrUnhealthy is returned when the relay health check fails.
	ErrUnhealthy = errors.New("relay unhealthy")
)
