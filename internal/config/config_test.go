package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/ensemble/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.OutboundQueueSize, convey.ShouldEqual, 256)
			convey.So(cfg.InboxSize, convey.ShouldEqual, 1024)
			convey.So(cfg.Volume, convey.ShouldEqual, 100)
			convey.So(cfg.RemoteAudible, convey.ShouldBeFalse)
			convey.So(cfg.HandshakeTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.DiscoveryTimeout(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the local color parses", func() {
			c, err := cfg.SelfColor()
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Hex(), convey.ShouldEqual, "#4363d8")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given out of range values", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"volume too loud", func(c *config.Config) { c.Volume = 128 }},
			{"negative volume", func(c *config.Config) { c.Volume = -1 }},
			{"midi channel 16", func(c *config.Config) { c.MIDIChannel = 16 }},
			{"zero outbound queue", func(c *config.Config) { c.OutboundQueueSize = 0 }},
			{"zero inbox", func(c *config.Config) { c.InboxSize = 0 }},
			{"negative dedupe", func(c *config.Config) { c.DedupeSize = -1 }},
			{"zero handshake timeout", func(c *config.Config) { c.HandshakeTimeoutMS = 0 }},
			{"bad color", func(c *config.Config) { c.LocalColor = "blue" }},
		}
		for _, tc := range cases {
			cfg := config.New()
			tc.mutate(cfg)
			err := cfg.Validate()
			convey.Convey("Then "+tc.name+" is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
