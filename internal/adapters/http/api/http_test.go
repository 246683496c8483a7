package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okian/ensemble/internal/adapters/http/api"
	"github.com/okian/ensemble/internal/domain/types"
	"github.com/okian/ensemble/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats types.RelayStats
	err   error
}

func (m *mockStatsProvider) Stats(_ context.Context) (types.RelayStats, error) {
	return m.stats, m.err
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockStatsProvider{stats: types.RelayStats{
			Started:    true,
			Clients:    2,
			Published:  7,
			Peers:      []types.Peer{{ClientID: "a", Color: "#e6194b"}, {ClientID: "b", Color: "#3cb44b"}},
			InstanceID: "relay-1",
		}}
		wsCalled := false
		ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			wsCalled = true
			w.WriteHeader(http.StatusSwitchingProtocols)
		})
		router := api.NewServer(deps).Routes(ws)

		Convey("When requesting the health endpoint", func() {
			w := serve(router, http.MethodGet, "/healthz")

			Convey("Then it reports ok with the client count", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
				So(body["clients"], ShouldEqual, float64(2))
			})
		})

		Convey("When requesting stats", func() {
			w := serve(router, http.MethodGet, "/stats")

			Convey("Then the relay snapshot is returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var st types.RelayStats
				So(json.NewDecoder(w.Body).Decode(&st), ShouldBeNil)
				So(st, ShouldResemble, deps.stats)
			})
		})

		Convey("When requesting metrics", func() {
			serve(router, http.MethodGet, "/healthz")
			w := serve(router, http.MethodGet, "/metrics")

			Convey("Then the registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(w.Body.String(), "ensemble_sync_http_requests_total"), ShouldBeTrue)
			})
		})

		Convey("When requesting the API document", func() {
			w := serve(router, http.MethodGet, "/openapi.yaml")

			Convey("Then it is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "Ensemble Relay")
			})
		})

		Convey("When requesting the websocket endpoint", func() {
			serve(router, http.MethodGet, "/ws")

			Convey("Then the ws handler is invoked", func() {
				So(wsCalled, ShouldBeTrue)
			})
		})

		Convey("When using the wrong method or path", func() {
			Convey("Then chi rejects it", func() {
				So(serve(router, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(serve(router, http.MethodGet, "/keys").Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a relay that has stopped", t, func() {
		deps := &mockStatsProvider{err: errors.New("relay stopped")}
		router := api.NewServer(deps).Routes(nil)

		Convey("Then health and stats report unavailable", func() {
			w := serve(router, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "unavailable")
			So(serve(router, http.MethodGet, "/stats").Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then no websocket route exists", func() {
			So(serve(router, http.MethodGet, "/ws").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestInstrument(t *testing.T) {
	Convey("Given an instrumented route that fails", t, func() {
		r := chi.NewRouter()
		r.With(api.Instrument).Get("/teapot/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		})
		before, err := testutil.GatherAndCount(metrics.GetRegistry(), "ensemble_sync_http_requests_total")
		So(err, ShouldBeNil)

		Convey("When it is requested twice with different ids", func() {
			first := serve(r, http.MethodGet, "/teapot/1")
			serve(r, http.MethodGet, "/teapot/2")

			Convey("Then the response passes through and both requests share one series", func() {
				So(first.Code, ShouldEqual, http.StatusTeapot)
				So(first.Body.String(), ShouldEqual, "short and stout")
				after, err := testutil.GatherAndCount(metrics.GetRegistry(), "ensemble_sync_http_requests_total")
				So(err, ShouldBeNil)
				So(after-before, ShouldEqual, 1)
			})
		})
	})
}
