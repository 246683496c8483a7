package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/ensemble/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestKind(t *testing.T) {
	convey.Convey("Given the key event kinds", t, func() {
		convey.Convey("When rendering them for the wire", func() {
			convey.So(model.NoteOn.String(), convey.ShouldEqual, "note_on")
			convey.So(model.NoteOff.String(), convey.ShouldEqual, "note_off")
		})

		convey.Convey("When parsing wire names", func() {
			k, ok := model.ParseKind("note_on")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(k, convey.ShouldEqual, model.NoteOn)

			k, ok = model.ParseKind("note_off")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(k, convey.ShouldEqual, model.NoteOff)

			_, ok = model.ParseKind("sustain")
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When the kind is unknown", func() {
			convey.So(model.Kind(9).String(), convey.ShouldEqual, "kind(9)")
		})
	})
}

func TestColor(t *testing.T) {
	convey.Convey("Given a color", t, func() {
		c := model.Color{R: 0x3c, G: 0xb4, B: 0x4b}

		convey.Convey("Then hex round-trips through ParseColor", func() {
			convey.So(c.Hex(), convey.ShouldEqual, "#3cb44b")
			parsed, err := model.ParseColor("#3cb44b")
			convey.So(err, convey.ShouldBeNil)
			convey.So(parsed, convey.ShouldResemble, c)
		})

		convey.Convey("Then a missing hash is accepted", func() {
			parsed, err := model.ParseColor("FFFFFF")
			convey.So(err, convey.ShouldBeNil)
			convey.So(parsed, convey.ShouldResemble, model.White)
		})

		convey.Convey("Then malformed strings are rejected", func() {
			for _, s := range []string{"", "#fff", "#gggggg", "#1234567"} {
				_, err := model.ParseColor(s)
				convey.So(errors.Is(err, model.ErrInvalidColor), convey.ShouldBeTrue)
			}
		})
	})

	convey.Convey("Given fallback colors", t, func() {
		convey.Convey("Then the same id always maps to the same color", func() {
			a := model.FallbackColor("client-a")
			convey.So(model.FallbackColor("client-a"), convey.ShouldResemble, a)
		})

		convey.Convey("Then the color is never neutral", func() {
			for _, id := range []model.ClientID{"", "a", "b", "local", "3f2c"} {
				c := model.FallbackColor(id)
				convey.So(c, convey.ShouldNotResemble, model.White)
				convey.So(c, convey.ShouldNotResemble, model.Black)
			}
		})
	})
}
