// Package model contains domain models passed between layers.
package model

import "fmt"

// ClientID identifies one connected participant. The relay assigns it.
type ClientID string

// LocalClientID is the identity used for local presses before any relay
// has assigned one.
const LocalClientID ClientID = "local"

// Kind is the press state change carried by a key event.
type Kind uint8

// Key event kinds.
const (
	NoteOn Kind = iota + 1
	NoteOff
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "note_on":
		return NoteOn, true
	case "note_off":
		return NoteOff, true
	}
	return 0, false
}

// WireEvent is one key press or release travelling between clients.
// It is transient and never persisted.
type WireEvent struct {
	ClientID ClientID // originating client
	KeyIndex int      // layout index in [0, NumKeys)
	Kind     Kind     // NoteOn or NoteOff
}

// ColorAssignment tells a client which display color belongs to an id.
// The first one a client receives on a connection is its own.
type ColorAssignment struct {
	ClientID ClientID
	Color    Color
}
