package ws

import (
	"net/http"
	"time"

	"github.com/okian/ensemble/pkg/logger"
)

// Default connection constants.
const (
	defaultWriteWait  = 2 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 50 * time.Second
	maxFrameSize      = 4096
)

// Option configures a Handler.
type Option func(*Handler)

// WithWriteWait bounds each frame write.
func WithWriteWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

// WithPongWait sets how long a silent connection is kept. Pings are sent
// at nine tenths of it.
func WithPongWait(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pongWait = d
			h.pingPeriod = d * 9 / 10
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
