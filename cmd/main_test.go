package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/okian/ensemble/internal/config"
	"github.com/okian/ensemble/internal/domain/types"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the relay configuration", t, func() {
		convey.Convey("When loading it from the environment", func() {
			_ = os.Setenv("ENSEMBLE_ADDR", ":8080")
			_ = os.Setenv("ENSEMBLE_CLIENT_OUTBOX_SIZE", "32")
			defer func() {
				_ = os.Unsetenv("ENSEMBLE_ADDR")
				_ = os.Unsetenv("ENSEMBLE_CLIENT_OUTBOX_SIZE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ClientOutboxSize, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When parsing listen ports", func() {
			convey.Convey("Then fixed ports are accepted", func() {
				port, err := listenPort(":9080")
				convey.So(err, convey.ShouldBeNil)
				convey.So(port, convey.ShouldEqual, 9080)
			})

			convey.Convey("And ephemeral or malformed ones are refused", func() {
				_, err := listenPort(":0")
				convey.So(err, convey.ShouldNotBeNil)
				_, err = listenPort("9080")
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestRelayWiring(t *testing.T) {
	convey.Convey("Given a relay built from defaults", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub, bp, err := newHub(ctx, config.New())
		convey.So(err, convey.ShouldBeNil)
		convey.So(bp, convey.ShouldBeNil)
		defer hub.Shutdown()

		srv := httptest.NewServer(newServer(":0", hub).Handler)
		defer srv.Close()

		convey.Convey("When a client connects over the websocket route", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			convey.So(err, convey.ShouldBeNil)
			defer conn.Close()
			_, _, err = conn.ReadMessage()
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then stats report it", func() {
				resp, err := http.Get(srv.URL + "/stats")
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				var st types.RelayStats
				convey.So(json.NewDecoder(resp.Body).Decode(&st), convey.ShouldBeNil)
				convey.So(st.Clients, convey.ShouldEqual, 1)
				convey.So(st.Backplane, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When scraping metrics", func() {
			resp, err := http.Get(srv.URL + "/metrics")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the endpoint answers", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}
