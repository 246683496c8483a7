// Package layout enumerates the fixed key slots of the shared keyboard and
// the visual regions each slot owns.
//
// A Layout is pure data: it is built once from an immutable Config and
// every lookup afterward is deterministic and cannot fail.
package layout

import (
	"fmt"

	"github.com/okian/ensemble/internal/domain/model"
)

// NoNote marks a slot without an acoustic identity.
const NoNote = -1

// NoKey marks a region owned by no key (bottom-row spacers).
const NoKey = -1

// Shape is the visual geometry class of a key slot.
type Shape uint8

// Key shapes.
const (
	White Shape = iota
	Black
	BlackSkinny
	WhiteFat
)

func (s Shape) String() string {
	switch s {
	case White:
		return "white"
	case Black:
		return "black"
	case BlackSkinny:
		return "black_skinny"
	case WhiteFat:
		return "white_fat"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// IsWhite reports whether the shape renders as a white key.
func (s Shape) IsWhite() bool { return s == White || s == WhiteFat }

// Row is one horizontal strip of regions.
type Row uint8

// Rows, top to bottom.
const (
	RowTop Row = iota
	RowBottom
)

// RegionID is an opaque identifier of one drawable region.
type RegionID int

// Entry is the static description of one key slot.
type Entry struct {
	Index  int
	NoteID int
	Shape  Shape
}

// Playable reports whether the slot produces a note.
func (e Entry) Playable() bool { return e.NoteID != NoNote }

// RegionSpec describes one drawable region.
type RegionSpec struct {
	ID      RegionID
	Row     Row
	Width   int
	Key     int // owning key index, or NoKey
	Neutral model.Color
}

// Layout is the lookup table built from a Config.
type Layout struct {
	cfg     Config
	entries []Entry
	rows    [2][]RegionSpec
	byKey   [][]RegionSpec
}

// New builds a Layout. It fails only when cfg is inconsistent.
func New(cfg Config) (*Layout, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	l := &Layout{
		cfg:     cfg,
		entries: make([]Entry, cfg.NumKeys),
		byKey:   make([][]RegionSpec, cfg.NumKeys),
	}
	unit := cfg.unit()

	note := cfg.BaseNote
	for i := 0; i < cfg.NumKeys; i++ {
		shape := cfg.shapeOf(i)
		noteID := NoNote
		// the spacer is not a semitone
		if shape != BlackSkinny {
			noteID = note
			note++
		}
		l.entries[i] = Entry{Index: i, NoteID: noteID, Shape: shape}

		neutral := model.Black
		if shape.IsWhite() {
			neutral = model.White
		}

		top := RegionSpec{
			ID:      regionID(cfg.NumKeys, RowTop, i),
			Row:     RowTop,
			Width:   unit * cfg.topWidth(shape),
			Key:     i,
			Neutral: neutral,
		}
		l.rows[RowTop] = append(l.rows[RowTop], top)
		l.byKey[i] = append(l.byKey[i], top)

		bottom := RegionSpec{
			ID:      regionID(cfg.NumKeys, RowBottom, i),
			Row:     RowBottom,
			Width:   unit * cfg.bottomWidth(shape),
			Key:     NoKey,
			Neutral: model.Black,
		}
		if shape.IsWhite() {
			bottom.Key = i
			bottom.Neutral = model.White
			l.byKey[i] = append(l.byKey[i], bottom)
		}
		l.rows[RowBottom] = append(l.rows[RowBottom], bottom)
	}

	return l, nil
}

// regionID encodes row and slot into one id; ids are unique per layout.
func regionID(numKeys int, row Row, index int) RegionID {
	return RegionID(int(row)*numKeys + index)
}

// Config returns the configuration the layout was built from.
func (l *Layout) Config() Config { return l.cfg }

// NumKeys returns the number of key slots.
func (l *Layout) NumKeys() int { return len(l.entries) }

// Entry returns the slot at index. ok is false when index is out of range.
func (l *Layout) Entry(index int) (Entry, bool) {
	if index < 0 || index >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[index], true
}

// Entries returns a copy of every slot in index order.
func (l *Layout) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// RegionsFor returns the ordered regions owned by the key at index:
// top then bottom for white keys, top only for black keys.
func (l *Layout) RegionsFor(index int) []RegionSpec {
	if index < 0 || index >= len(l.byKey) {
		return nil
	}
	out := make([]RegionSpec, len(l.byKey[index]))
	copy(out, l.byKey[index])
	return out
}

// Rows returns both rows, including spacers, in drawing order.
func (l *Layout) Rows() [2][]RegionSpec {
	var out [2][]RegionSpec
	for r := range l.rows {
		out[r] = make([]RegionSpec, len(l.rows[r]))
		copy(out[r], l.rows[r])
	}
	return out
}

// RowWidth returns the summed width of one row.
func (l *Layout) RowWidth(row Row) int {
	total := 0
	for _, r := range l.rows[row] {
		total += r.Width
	}
	return total
}
