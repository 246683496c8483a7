package service

import (
	"github.com/okian/ensemble/internal/adapters/session"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/pkg/logger"
)

const (
	defaultInboxSize = 1024
	defaultVolume    = 100
)

// Option applies a configuration option to the Synchronizer.
type Option func(*Synchronizer)

// WithRemoteAudible makes remote presses sound locally.
func WithRemoteAudible(on bool) Option {
	return func(s *Synchronizer) {
		s.remoteAudible = on
	}
}

// WithVolume sets the note-on velocity, clamped to 127.
func WithVolume(v uint8) Option {
	return func(s *Synchronizer) {
		if v > 127 {
			v = 127
		}
		s.volume = v
	}
}

// WithInboxSize sets the capacity of the loop inbox.
func WithInboxSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// WithSelfColor sets the color used for local presses until a relay
// assigns one.
func WithSelfColor(c model.Color) Option {
	return func(s *Synchronizer) {
		s.selfColor = c
	}
}

// WithLogger sets a custom logger for the synchronizer.
func WithLogger(l logger.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventHook registers fn to observe every remote key event that was
// applied to the keyboard. fn runs on the loop goroutine.
func WithEventHook(fn func(model.WireEvent)) Option {
	return func(s *Synchronizer) {
		s.onEvent = fn
	}
}

// WithStatusHook registers fn to observe connection status changes. fn
// runs on the loop goroutine.
func WithStatusHook(fn func(Status)) Option {
	return func(s *Synchronizer) {
		s.onStatus = fn
	}
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithRelayURL sets the websocket url of the relay.
func WithRelayURL(url string) ClientOption {
	return func(c *Client) {
		c.relayURL = url
	}
}

// WithSessionOptions passes options to every session the client opens.
func WithSessionOptions(opts ...session.Option) ClientOption {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithSynchronizerOptions passes options to the client's synchronizer.
func WithSynchronizerOptions(opts ...Option) ClientOption {
	return func(c *Client) {
		c.syncOpts = append(c.syncOpts, opts...)
	}
}

// WithClientLogger sets a custom logger for the client.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
