package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists the origins the booking and dashboard frontends are
// served from. Empty AllowedOrigins disables CORS handling entirely.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func WithCORS(p CORSPolicy) Middleware {
	origins := trimList(p.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := strings.Join(trimList(p.AllowedMethods), ", ")
	headers := strings.Join(trimList(p.AllowedHeaders), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allow, ok := p.allowOrigin(origins, r.Header.Get("Origin"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			if p.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if secs := int(p.MaxAge.Seconds()); secs > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(secs))
			}
			h.Add("Vary", "Origin")
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowOrigin resolves the Allow-Origin header value for a request origin.
// The wildcard cannot be echoed literally when credentials are allowed.
func (p CORSPolicy) allowOrigin(allowed []string, origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	for _, a := range allowed {
		switch {
		case a == "*" && p.AllowCredentials:
			return origin, true
		case a == "*":
			return "*", true
		case strings.EqualFold(a, origin):
			return origin, true
		}
	}
	return "", false
}

func trimList(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
