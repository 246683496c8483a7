// Package keyboard holds the logical keys of the shared piano and their
// press state.
//
// Keys are not safe for concurrent use. A single owner (the synchronizer
// loop) mutates them; every state change is pushed to a Renderer.
package keyboard

import (
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
)

// Renderer receives visual refreshes. Implementations map region ids to
// whatever they draw.
type Renderer interface {
	Paint(region layout.RegionID, c model.Color)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(region layout.RegionID, c model.Color)

// Paint implements Renderer.
func (f RendererFunc) Paint(region layout.RegionID, c model.Color) { f(region, c) }

type nopRenderer struct{}

func (nopRenderer) Paint(layout.RegionID, model.Color) {}

// Key is one playable unit. It owns its regions exclusively.
type Key struct {
	entry     layout.Entry
	regions   []layout.RegionID
	neutral   model.Color
	color     model.Color
	pressedBy model.ClientID
	pressed   bool
	renderer  Renderer
}

func newKey(entry layout.Entry, regions []layout.RegionSpec, r Renderer) *Key {
	k := &Key{
		entry:    entry,
		regions:  make([]layout.RegionID, 0, len(regions)),
		neutral:  model.Black,
		renderer: r,
	}
	if entry.Shape.IsWhite() {
		k.neutral = model.White
	}
	for _, spec := range regions {
		k.regions = append(k.regions, spec.ID)
	}
	k.color = k.neutral
	return k
}

// Index returns the layout index of the key.
func (k *Key) Index() int { return k.entry.Index }

// NoteID returns the note the key plays, or layout.NoNote.
func (k *Key) NoteID() int { return k.entry.NoteID }

// Entry returns the static slot description.
func (k *Key) Entry() layout.Entry { return k.entry }

// Regions returns the ids of the regions the key owns.
func (k *Key) Regions() []layout.RegionID {
	out := make([]layout.RegionID, len(k.regions))
	copy(out, k.regions)
	return out
}

// Color returns the current highlight color.
func (k *Key) Color() model.Color { return k.color }

// Neutral returns the color shown when nobody holds the key.
func (k *Key) Neutral() model.Color { return k.neutral }

// PressedBy returns the current presser.
func (k *Key) PressedBy() (model.ClientID, bool) { return k.pressedBy, k.pressed }

// Press marks the key as held by `by` in color c. The latest press wins.
// Pressing again by the same client in the same color changes nothing.
// It reports whether the visible state changed.
func (k *Key) Press(by model.ClientID, c model.Color) bool {
	if k.pressed && k.pressedBy == by && k.color == c {
		return false
	}
	k.pressed = true
	k.pressedBy = by
	k.color = c
	k.refresh()
	return true
}

// Release clears the press only when `by` is the current presser, so a
// late release from one client never clears another client's press.
// It reports whether the key was released.
func (k *Key) Release(by model.ClientID) bool {
	if !k.pressed || k.pressedBy != by {
		return false
	}
	k.pressed = false
	k.pressedBy = ""
	k.color = k.neutral
	k.refresh()
	return true
}

// reattribute moves a press from one client id to another without a
// visual change.
func (k *Key) reattribute(from, to model.ClientID) bool {
	if !k.pressed || k.pressedBy != from {
		return false
	}
	k.pressedBy = to
	return true
}

// Redraw pushes the current color of every owned region.
func (k *Key) Redraw() { k.refresh() }

func (k *Key) refresh() {
	for _, id := range k.regions {
		k.renderer.Paint(id, k.color)
	}
}
