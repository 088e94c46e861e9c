package httpx

import (
	"net/http"
	"time"
)

// Middleware wraps a handler with cross-cutting behavior. Chains apply
// outermost-first: Chain(h, a, b) serves requests through a, then b, then h.
type Middleware func(http.Handler) http.Handler

func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// WithBodyLimit caps request body reads; an oversized booking payload fails
// inside the JSON decoder rather than buffering unbounded input.
func WithBodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// WithTimeout bounds whole-request handling time.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}
