package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// LimitExemptPaths are never rate limited or throttled. Provider webhooks
// must always be acknowledged and streams stay open for their lifetime.
var LimitExemptPaths = []string{"/api/webhooks", "/api/notifications/stream"}

// RateLimit caps requests per client IP per minute.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	return Except(httprate.LimitByIP(perMinute, time.Minute), LimitExemptPaths...)
}

// Concurrency caps the number of requests being served at once.
func Concurrency(limit int) func(http.Handler) http.Handler {
	return Except(middleware.Throttle(limit), LimitExemptPaths...)
}

// Except applies m to every request whose path matches none of patterns.
func Except(m func(http.Handler) http.Handler, patterns ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := m(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchesAny(r.URL.Path, patterns) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
