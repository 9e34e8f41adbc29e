package msgrelay

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/felixge/httpsnoop"
)

// RecoverErrors will wrap an HTTP handler. When a panic occurs, it will
// log the stack and reply with an internal server error.
func RecoverErrors(log *slog.Logger, fn http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if thing := recover(); thing != nil {
				if thing == http.ErrAbortHandler {
					panic(thing)
				}
				log.Error("handler panic",
					"method", r.Method,
					"url", r.URL.String(),
					"panic", fmt.Sprintf("%v", thing),
					"stack", string(debug.Stack()))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		fn.ServeHTTP(w, r)
	}
}

// LogRequests wraps an HTTP handler and logs one line per request once it
// has been served.
func LogRequests(log *slog.Logger, fn http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(fn, w, r)
		log.Info("handled",
			"method", r.Method,
			"url", r.URL.String(),
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration)
	}
}
