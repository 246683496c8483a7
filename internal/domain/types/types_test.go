package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/ensemble/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKeyState(t *testing.T) {
	Convey("Given a released KeyState", t, func() {
		ks := types.KeyState{Index: 3, NoteID: 63, Color: "#000000"}

		Convey("When encoding it as JSON", func() {
			b, err := json.Marshal(ks)
			So(err, ShouldBeNil)

			Convey("Then the presser is omitted", func() {
				So(string(b), ShouldNotContainSubstring, "pressed_by")
				So(string(b), ShouldContainSubstring, `"pressed":false`)
			})
		})
	})

	Convey("Given a pressed KeyState", t, func() {
		ks := types.KeyState{Index: 0, NoteID: 60, Pressed: true, PressedBy: "a", Color: "#3cb44b"}

		Convey("When encoding it as JSON", func() {
			b, err := json.Marshal(ks)
			So(err, ShouldBeNil)

			Convey("Then every field is present", func() {
				So(string(b), ShouldEqual, `{"index":0,"note_id":60,"pressed":true,"pressed_by":"a","color":"#3cb44b"}`)
			})
		})
	})
}

func TestRelayStats(t *testing.T) {
	Convey("Given an empty RelayStats", t, func() {
		stats := types.RelayStats{}

		Convey("Then it should have zero values", func() {
			So(stats.Started, ShouldBeFalse)
			So(stats.Clients, ShouldEqual, 0)
			So(stats.Peers, ShouldBeNil)
		})
	})
}
