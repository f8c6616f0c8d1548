// Package mw provides HTTP middleware for the Vocalis API.
package mw

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/vocalis-api/internal/logging"
	"github.com/jmylchreest/vocalis-api/internal/version"
)

// APIVersion adds X-API-Version and X-Build-Commit headers to all responses.
func APIVersion() func(http.Handler) http.Handler {
	info := version.Get()
	apiVersion := info.Short()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", apiVersion)
			w.Header().Set("X-Build-Commit", info.Commit)
			next.ServeHTTP(w, r)
		})
	}
}

// LogContext copies the chi request ID into the logging context so runtime
// log filters can match on it. It must run after middleware.RequestID.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logging.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
