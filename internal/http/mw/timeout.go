package mw

import (
	"net/http"
	"strings"
	"time"
)

const timeoutBody = `{"title":"Service Unavailable","status":503,"detail":"request timed out"}`

// TimeoutConfig defines timeout behavior for different path patterns.
type TimeoutConfig struct {
	Default time.Duration
	// Extended applies to paths that make several provider calls in a row.
	Extended         time.Duration
	ExtendedPatterns []string
	// SkipPatterns get no timeout (SSE streams, webhooks that must be acknowledged).
	SkipPatterns []string
}

// Timeout bounds request handling time per path using http.TimeoutHandler.
// A timed-out request gets a 503 and its handler's context is canceled.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		var (
			standard http.Handler = next
			extended http.Handler = next
		)
		if cfg.Default > 0 {
			standard = http.TimeoutHandler(next, cfg.Default, timeoutBody)
		}
		if cfg.Extended > 0 {
			extended = http.TimeoutHandler(next, cfg.Extended, timeoutBody)
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case matchesAny(r.URL.Path, cfg.SkipPatterns):
				next.ServeHTTP(w, r)
			case matchesAny(r.URL.Path, cfg.ExtendedPatterns):
				extended.ServeHTTP(w, r)
			default:
				standard.ServeHTTP(w, r)
			}
		})
	}
}

func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
