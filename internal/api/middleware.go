package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/marcus/taskflow/internal/logging"
)

// requestID ensures every request carries an X-Request-ID, reusing the
// caller's when present, and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(logging.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(logging.RequestIDHeader, id)
		}
		w.Header().Set(logging.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// requireKey rejects requests whose X-API-Key does not match before h runs.
func (s *Server) requireKey(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(APIKeyHeader)
		want := s.currentKey()
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			logging.FromRequest(r).Warn().
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("invalid api key")
			if s.audit != nil {
				if err := s.audit.LogDenied(r.Method, r.URL.Path, r.RemoteAddr, r.Header.Get(logging.RequestIDHeader)); err != nil {
					s.log.Errorf("audit denied request: %v", err)
				}
			}
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		h(w, r)
	})
}

// recoverer turns a handler panic into a 500 without leaking detail.
func recoverer(log *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
