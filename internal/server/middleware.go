package server

import (
	"net/http"
	"time"

	"marketwire/internal/store"
)

// requireAPIKey protects the API with a bearer token when one is configured.
// Without a configured key the API is open, which is intended for local use.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "Missing Authorization header")
			return
		}
		if authHeader != "Bearer "+s.config.APIKey {
			s.log.Warn("Invalid API key attempt", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			s.respondError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// logRequests records every API request in the store. Log rows feed the
// /logs endpoint; failures to record never fail the request itself.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if s.store == nil {
			return
		}
		entry := store.RequestLog{
			Timestamp:  start,
			Method:     r.Method,
			Path:       r.URL.Path,
			RemoteAddr: r.RemoteAddr,
			Status:     rec.status,
			Duration:   float64(time.Since(start).Microseconds()) / 1000.0,
		}
		if err := s.store.LogRequest(entry); err != nil {
			s.log.Warn("Failed to record request log", "error", err)
		}
	})
}
