// Package config defines process configuration for the relay, the piano
// client and the swarm tool.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and ENSEMBLE_* env vars on top of the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"

	"github.com/okian/ensemble/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogBackend selects the logger implementation: slog or zap.
	LogBackend string `koanf:"log_backend"`

	// LogFile redirects logs to a file. The piano client needs this so log
	// lines do not corrupt the terminal UI.
	LogFile string `koanf:"log_file"`

	// Addr configures the relay HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// RelayURL is the websocket URL a client dials. Empty means discover
	// or stay local-only.
	RelayURL string `koanf:"relay_url"`

	// HandshakeTimeoutMS bounds the wait for the first color assignment.
	HandshakeTimeoutMS int `koanf:"handshake_timeout_ms"`

	// OutboundQueueSize bounds the client's outbound event queue.
	OutboundQueueSize int `koanf:"outbound_queue_size"`

	// InboxSize bounds the synchronizer inbox.
	InboxSize int `koanf:"inbox_size"`

	// ClientOutboxSize bounds each relay client's outbox; a client whose
	// outbox is full is dropped.
	ClientOutboxSize int `koanf:"client_outbox_size"`

	// LocalColor is the self color used before a session assigns one.
	LocalColor string `koanf:"local_color"`

	// RemoteAudible plays remote presses on the local sound output.
	RemoteAudible bool `koanf:"remote_audible"`

	// MIDIPort selects the MIDI out port by name substring or number.
	MIDIPort string `koanf:"midi_port"`

	// MIDIChannel is the MIDI channel, 0-15.
	MIDIChannel int `koanf:"midi_channel"`

	// Volume is the note-on velocity, 0-127.
	Volume int `koanf:"volume"`

	// Intro plays the startup jingle.
	Intro bool `koanf:"intro"`

	// WindowWidth scales the keyboard layout.
	WindowWidth int `koanf:"window_width"`

	// RedisAddr enables the relay backplane when set.
	RedisAddr string `koanf:"redis_addr"`

	// RedisChannel is the backplane pub/sub channel.
	RedisChannel string `koanf:"redis_channel"`

	// DedupeSize bounds the backplane envelope id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Discovery turns on mDNS advertise (relay) and browse (client).
	Discovery bool `koanf:"discovery"`

	// DiscoveryTimeoutMS bounds the client's mDNS browse.
	DiscoveryTimeoutMS int `koanf:"discovery_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogBackend:         "slog",
		Addr:               ":9080",
		HandshakeTimeoutMS: 5000,
		OutboundQueueSize:  256,
		InboxSize:          1024,
		ClientOutboxSize:   256,
		LocalColor:         "#4363d8",
		MIDIChannel:        0,
		Volume:             100,
		WindowWidth:        2000,
		RedisChannel:       "ensemble",
		DedupeSize:         4096,
		DiscoveryTimeoutMS: 2000,
	}
}

// HandshakeTimeout returns HandshakeTimeoutMS as a duration.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

// DiscoveryTimeout returns DiscoveryTimeoutMS as a duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutMS) * time.Millisecond
}

// SelfColor parses LocalColor.
func (c *Config) SelfColor() (model.Color, error) {
	return model.ParseColor(c.LocalColor)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Volume < 0 || c.Volume > 127:
		return fmt.Errorf("%w: volume %d not in 0-127", ErrInvalidConfig, c.Volume)
	case c.MIDIChannel < 0 || c.MIDIChannel > 15:
		return fmt.Errorf("%w: midi_channel %d not in 0-15", ErrInvalidConfig, c.MIDIChannel)
	case c.OutboundQueueSize <= 0, c.InboxSize <= 0, c.ClientOutboxSize <= 0, c.DedupeSize <= 0:
		return fmt.Errorf("%w: queue sizes must be positive", ErrInvalidConfig)
	case c.HandshakeTimeoutMS <= 0:
		return fmt.Errorf("%w: handshake_timeout_ms must be positive", ErrInvalidConfig)
	case c.WindowWidth <= 0:
		return fmt.Errorf("%w: window_width must be positive", ErrInvalidConfig)
	}
	if _, err := c.SelfColor(); err != nil {
		return fmt.Errorf("%w: local_color: %w", ErrInvalidConfig, err)
	}
	return nil
}
