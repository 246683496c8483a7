package relay

import (
	"github.com/okian/ensemble/internal/domain/dedupe"
	"github.com/okian/ensemble/pkg/logger"
)

// Default hub configuration constants.
const (
	defaultInboxSize  = 1024
	defaultOutboxSize = 256
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithInboxSize sets the capacity of the hub inbox.
func WithInboxSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.inboxSize = n
		}
	}
}

// WithOutboxSize sets the per-client outbox capacity. A client whose
// outbox is full when a frame is fanned out is dropped.
func WithOutboxSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.outboxSize = n
		}
	}
}

// WithBackplane shares the room with other relay instances.
func WithBackplane(bp Backplane) Option {
	return func(h *Hub) {
		h.backplane = bp
	}
}

// WithInstanceID names this relay instance on the backplane.
func WithInstanceID(id string) Option {
	return func(h *Hub) {
		if id != "" {
			h.instanceID = id
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// BackplaneOption applies a configuration option to the RedisBackplane.
type BackplaneOption func(*RedisBackplane)

// WithChannel sets the pub/sub channel name.
func WithChannel(name string) BackplaneOption {
	return func(b *RedisBackplane) {
		if name != "" {
			b.channel = name
		}
	}
}

// WithDeduper sets the envelope id deduper.
func WithDeduper(d dedupe.Deduper) BackplaneOption {
	return func(b *RedisBackplane) {
		if d != nil {
			b.deduper = d
		}
	}
}

// WithPublishBuffer sets how many envelopes may wait for publication.
func WithPublishBuffer(n int) BackplaneOption {
	return func(b *RedisBackplane) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithMaxRetries bounds the startup ping attempts.
func WithMaxRetries(n uint64) BackplaneOption {
	return func(b *RedisBackplane) {
		b.maxRetries = n
	}
}

// WithBackplaneLogger sets a custom logger for the backplane.
func WithBackplaneLogger(l logger.Logger) BackplaneOption {
	return func(b *RedisBackplane) {
		if l != nil {
			b.logger = l
		}
	}
}
