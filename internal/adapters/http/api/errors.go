package api

import "errors"

// ErrUnavailable is reported when the relay no longer serves clients.
var ErrUnavailable = errors.New("relay unavailable")
