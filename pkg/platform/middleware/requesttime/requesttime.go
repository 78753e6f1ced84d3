// Package requesttime pins one "now" per request so every timestamp written
// while serving it agrees.
package requesttime

import (
	"net/http"
	"time"

	"frost/pkg/requestcontext"
)

// Postgres keeps microseconds; truncating up front means a record read back
// from the index equals the one that was written.
const resolution = time.Microsecond

// Middleware captures the wall clock at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pinned := now().UTC().Truncate(resolution)
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), pinned)))
		})
	}
}
