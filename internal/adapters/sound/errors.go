package sound

import "errors"

// ErrDevice marks a sound device that cannot be opened or written to.
// At startup it is fatal for the piano client.
var ErrDevice = errors.New("sound device error")
