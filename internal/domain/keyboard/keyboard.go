package keyboard

import (
	"errors"
	"fmt"

	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/domain/types"
)

// ErrKeyOutOfRange is returned for an index outside the layout.
var ErrKeyOutOfRange = errors.New("key index out of range")

// Keyboard is the full set of keys, created once from a layout.
type Keyboard struct {
	layout *layout.Layout
	keys   []*Key
}

// New creates one key per layout slot. A nil renderer discards refreshes.
func New(l *layout.Layout, r Renderer) *Keyboard {
	if r == nil {
		r = nopRenderer{}
	}
	kb := &Keyboard{
		layout: l,
		keys:   make([]*Key, l.NumKeys()),
	}
	for _, e := range l.Entries() {
		kb.keys[e.Index] = newKey(e, l.RegionsFor(e.Index), r)
	}
	return kb
}

// Layout returns the layout the keyboard was built from.
func (kb *Keyboard) Layout() *layout.Layout { return kb.layout }

// Len returns the number of keys.
func (kb *Keyboard) Len() int { return len(kb.keys) }

// Key returns the key at index.
func (kb *Keyboard) Key(index int) (*Key, error) {
	if index < 0 || index >= len(kb.keys) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrKeyOutOfRange, index, len(kb.keys))
	}
	return kb.keys[index], nil
}

// ReleaseAllBy releases every key currently held by id and returns the
// released indices.
func (kb *Keyboard) ReleaseAllBy(id model.ClientID) []int {
	var released []int
	for _, k := range kb.keys {
		if k.Release(id) {
			released = append(released, k.Index())
		}
	}
	return released
}

// ReleaseAllExcept releases every key held by anyone other than id.
func (kb *Keyboard) ReleaseAllExcept(id model.ClientID) []int {
	var released []int
	for _, k := range kb.keys {
		by, ok := k.PressedBy()
		if ok && by != id && k.Release(by) {
			released = append(released, k.Index())
		}
	}
	return released
}

// Reattribute moves every press held by `from` to `to`.
func (kb *Keyboard) Reattribute(from, to model.ClientID) int {
	n := 0
	for _, k := range kb.keys {
		if k.reattribute(from, to) {
			n++
		}
	}
	return n
}

// RedrawAll pushes every key's current color.
func (kb *Keyboard) RedrawAll() {
	for _, k := range kb.keys {
		k.Redraw()
	}
}

// Snapshot returns the visible state of every key.
func (kb *Keyboard) Snapshot() []types.KeyState {
	out := make([]types.KeyState, len(kb.keys))
	for i, k := range kb.keys {
		by, pressed := k.PressedBy()
		out[i] = types.KeyState{
			Index:     k.Index(),
			NoteID:    k.NoteID(),
			Pressed:   pressed,
			PressedBy: string(by),
			Color:     k.Color().Hex(),
		}
	}
	return out
}
