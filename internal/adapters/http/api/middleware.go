package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/ensemble/pkg/metrics"
)

// unmatched labels requests that reached no chi route.
const unmatched = "unmatched"

// Instrument records request count and latency for the relay's
// request/response routes, labelled by chi route pattern so path
// parameters do not explode the label set. /ws is left unwrapped: an
// upgraded connection lives for the whole session.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		route := routePattern(r)
		durationMs := float64(time.Since(start).Milliseconds())

		metrics.RecordHTTPRequest(route, r.Method, code)
		metrics.RecordHTTPRequestDuration(route, r.Method, code, durationMs)
		if status >= http.StatusBadRequest {
			metrics.RecordErrorByComponent("relay_http", errorClass(status))
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatched
}

// errorClass buckets failed responses. 503 means the hub has stopped.
func errorClass(status int) string {
	switch {
	case status == http.StatusServiceUnavailable:
		return "hub_stopped"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status >= http.StatusInternalServerError:
		return "server_error"
	default:
		return "client_error"
	}
}
