package session

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/ensemble/pkg/logger"
)

// Default session configuration constants.
const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultQueueSize        = 256
	defaultWriteWait        = 2 * time.Second
	closeWait               = time.Second
	maxFrameSize            = 4096
)

// Option configures a Session.
type Option func(*Session)

// WithHandshakeTimeout bounds the wait for the first color assignment.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}

// WithQueueSize bounds the outbound event queue.
func WithQueueSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWriteWait bounds a single frame write.
func WithWriteWait(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
