// Package wire is the JSON frame format shared by the relay and clients.
//
// Every frame is one JSON object with a "type" discriminator:
//
//	{"type":"color_assignment","client_id":"…","color":"#rrggbb"}
//	{"type":"key_event","client_id":"…","key":3,"kind":"note_on"}
//	{"type":"peer_left","client_id":"…"}
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/okian/ensemble/internal/domain/model"
)

// Frame type names.
const (
	TypeColorAssignment = "color_assignment"
	TypeKeyEvent        = "key_event"
	TypePeerLeft        = "peer_left"
)

// Message is one decoded frame.
type Message interface{ isMessage() }

// ColorAssignment carries the color of a client.
type ColorAssignment struct{ model.ColorAssignment }

// KeyEvent carries a press or release.
type KeyEvent struct{ model.WireEvent }

// PeerLeft announces that a client disconnected from the relay.
type PeerLeft struct {
	ClientID model.ClientID
}

func (ColorAssignment) isMessage() {}
func (KeyEvent) isMessage()        {}
func (PeerLeft) isMessage()        {}

// NewColorAssignment builds a ColorAssignment message.
func NewColorAssignment(id model.ClientID, c model.Color) ColorAssignment {
	return ColorAssignment{model.ColorAssignment{ClientID: id, Color: c}}
}

// NewKeyEvent builds a KeyEvent message.
func NewKeyEvent(id model.ClientID, key int, kind model.Kind) KeyEvent {
	return KeyEvent{model.WireEvent{ClientID: id, KeyIndex: key, Kind: kind}}
}

type frame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Color    string `json:"color,omitempty"`
	Key      *int   `json:"key,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// Encode serializes m.
func Encode(m Message) ([]byte, error) {
	var f frame
	switch msg := m.(type) {
	case ColorAssignment:
		f = frame{Type: TypeColorAssignment, ClientID: string(msg.ClientID), Color: msg.Color.Hex()}
	case KeyEvent:
		if msg.Kind != model.NoteOn && msg.Kind != model.NoteOff {
			return nil, fmt.Errorf("%w: %s", ErrEncode, msg.Kind)
		}
		key := msg.KeyIndex
		f = frame{Type: TypeKeyEvent, ClientID: string(msg.ClientID), Key: &key, Kind: msg.Kind.String()}
	case PeerLeft:
		f = frame{Type: TypePeerLeft, ClientID: string(msg.ClientID)}
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrEncode, m)
	}
	return json.Marshal(f)
}

// Decode parses one frame. Every failure wraps ErrDecode. The key index is
// not range checked here.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if f.ClientID == "" {
		return nil, fmt.Errorf("%w: %s without client_id", ErrDecode, f.Type)
	}
	id := model.ClientID(f.ClientID)

	switch f.Type {
	case TypeColorAssignment:
		c, err := model.ParseColor(f.Color)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return NewColorAssignment(id, c), nil
	case TypeKeyEvent:
		if f.Key == nil {
			return nil, fmt.Errorf("%w: key_event without key", ErrDecode)
		}
		kind, ok := model.ParseKind(f.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: unknown kind %q", ErrDecode, f.Kind)
		}
		return NewKeyEvent(id, *f.Key, kind), nil
	case TypePeerLeft:
		return PeerLeft{ClientID: id}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrDecode, f.Type)
	}
}
