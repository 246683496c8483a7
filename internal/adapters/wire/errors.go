package wire

import "errors"

// ErrDecode marks a frame that could not be turned into a Message.
var ErrDecode = errors.New("decode error")

// ErrEncode marks a Message that could not be serialized.
var ErrEncode = errors.New("encode error")
