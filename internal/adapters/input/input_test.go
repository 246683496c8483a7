package input_test

import (
	"testing"

	"github.com/okian/ensemble/internal/adapters/input"
	"github.com/okian/ensemble/internal/domain/layout"
	. "github.com/smartystreets/goconvey/convey"
)

type intent struct {
	press bool
	key   int
}

type recordingSink struct{ intents []intent }

func (s *recordingSink) LocalPress(k int)   { s.intents = append(s.intents, intent{true, k}) }
func (s *recordingSink) LocalRelease(k int) { s.intents = append(s.intents, intent{false, k}) }

func TestAdapter(t *testing.T) {
	Convey("Given an adapter over the default layout", t, func() {
		l, err := layout.New(layout.DefaultConfig())
		So(err, ShouldBeNil)
		sink := &recordingSink{}
		a := input.New(l, sink)

		Convey("When the top and bottom regions of a white key are pressed", func() {
			regions := l.RegionsFor(2)
			So(a.PointerDown(regions[0].ID), ShouldBeTrue)
			So(a.PointerUp(regions[0].ID), ShouldBeTrue)
			So(a.PointerDown(regions[1].ID), ShouldBeTrue)

			Convey("Then both resolve to the same key", func() {
				So(sink.intents, ShouldResemble, []intent{{true, 2}, {false, 2}, {true, 2}})
			})
		})

		Convey("When a black key is pressed", func() {
			a.PointerDown(l.RegionsFor(3)[0].ID)

			Convey("Then its index is emitted", func() {
				So(sink.intents, ShouldResemble, []intent{{true, 3}})
			})
		})

		Convey("When a bottom-row spacer is pressed", func() {
			spacer := l.Rows()[layout.RowBottom][1]
			So(spacer.Key, ShouldEqual, layout.NoKey)

			Convey("Then nothing is emitted", func() {
				So(a.PointerDown(spacer.ID), ShouldBeFalse)
				So(a.PointerUp(spacer.ID), ShouldBeFalse)
				So(sink.intents, ShouldBeEmpty)
			})
		})

		Convey("When the skinny spacer key is pressed", func() {
			region := l.RegionsFor(5)[0].ID

			Convey("Then nothing is emitted", func() {
				So(a.PointerDown(region), ShouldBeFalse)
				So(sink.intents, ShouldBeEmpty)
			})
		})

		Convey("When an unknown region is reported", func() {
			Convey("Then it is ignored", func() {
				So(a.PointerDown(layout.RegionID(9999)), ShouldBeFalse)
				_, ok := a.KeyFor(layout.RegionID(-1))
				So(ok, ShouldBeFalse)
			})
		})
	})
}
