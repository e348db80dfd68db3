package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/throttlite/throttlite/internal/auth"
)

// Decider is the slice of the engine the middleware needs.
type Decider interface {
	ShouldProcess(timestamp int64, eventID, key string) bool
	Window() int64
}

// Throttle gates API callers per authenticated key ID using an engine
// instance of its own, fed with the server clock in Unix seconds. It keeps
// abusive clients from hammering the decision API without touching the
// engine that serves their decisions.
func Throttle(
	engine Decider,
	skipPaths map[string]struct{},
	now func() time.Time,
	onThrottled func(keyID string),
) Middleware {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// ops endpoints stay reachable
			if _, ok := skipPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			keyID, ok := auth.KeyIDFrom(r.Context())
			if !ok || keyID == "" {
				keyID = "anon"
			}

			ts := now().Unix()
			eventID := r.Method + " " + r.URL.Path

			if !engine.ShouldProcess(ts, eventID, keyID) {
				if onThrottled != nil {
					onThrottled(keyID)
				}
				window := engine.Window()
				w.Header().Set("X-Throttle-Window", strconv.FormatInt(window, 10))
				if window > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(window, 10))
				}
				writeErr(w, http.StatusTooManyRequests, "throttled", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
