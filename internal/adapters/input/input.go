// Package input turns pointer activity on keyboard regions into key
// intents.
package input

import (
	"github.com/okian/ensemble/internal/domain/layout"
)

// IntentSink receives key intents. The synchronizer implements it.
type IntentSink interface {
	LocalPress(keyIndex int)
	LocalRelease(keyIndex int)
}

// PointerSource is anything that reports pointer down and up on a region.
// The front-end calls Up with the region that received the matching Down,
// even when the pointer has moved off it.
type PointerSource interface {
	PointerDown(region layout.RegionID) bool
	PointerUp(region layout.RegionID) bool
}

// Adapter maps regions to keys. The lookup is filled once in New and is
// read-only afterward, so an Adapter is safe for concurrent use.
type Adapter struct {
	keyOf map[layout.RegionID]int
	sink  IntentSink
}

var _ PointerSource = (*Adapter)(nil)

// New builds the region lookup from l. Regions of non-playable keys and
// bottom-row spacers are left out.
func New(l *layout.Layout, sink IntentSink) *Adapter {
	a := &Adapter{keyOf: make(map[layout.RegionID]int), sink: sink}
	for _, e := range l.Entries() {
		if !e.Playable() {
			continue
		}
		for _, r := range l.RegionsFor(e.Index) {
			a.keyOf[r.ID] = e.Index
		}
	}
	return a
}

// KeyFor returns the key owning region.
func (a *Adapter) KeyFor(region layout.RegionID) (int, bool) {
	k, ok := a.keyOf[region]
	return k, ok
}

// PointerDown emits LocalPress for the key owning region. It reports
// whether an intent was emitted.
func (a *Adapter) PointerDown(region layout.RegionID) bool {
	k, ok := a.keyOf[region]
	if !ok {
		return false
	}
	a.sink.LocalPress(k)
	return true
}

// PointerUp emits LocalRelease for the key owning region.
func (a *Adapter) PointerUp(region layout.RegionID) bool {
	k, ok := a.keyOf[region]
	if !ok {
		return false
	}
	a.sink.LocalRelease(k)
	return true
}
