package logging

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Middleware attaches l to every request context and writes one access line
// per request. Server errors log at error, client errors at warn.
func Middleware(l *Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		var event *zerolog.Event
		log := hlog.FromRequest(r)
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Str("request_id", r.Header.Get(RequestIDHeader)).
			Msg("request")
	})

	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(l.WithComponent("http").Zerolog())(access(next))
	}
}

// FromRequest returns the request-scoped zerolog logger set by Middleware.
func FromRequest(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
