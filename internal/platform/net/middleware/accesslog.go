package middleware

import (
	"net/http"
	"slices"
	"time"

	"eventsink/internal/platform/logger"
	pnet "eventsink/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLogOptions tunes AccessLog
type AccessLogOptions struct {
	// Slow logs requests at or above it at warn; 0 never does
	Slow time.Duration
	// Skip lists exact paths that produce no line, such as health checks and scrapes
	Skip []string
	// Log replaces the root logger; tests set it to capture lines
	Log *logger.Logger
}

// RequestLogger puts the chi request id where logger.C finds it
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithRequest(r.Context(), pnet.RequestID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog writes one line per request once the handler returns
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opt.Skip, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(start)

			l := opt.Log
			if l == nil {
				l = logger.C(r.Context())
			} else if id := pnet.RequestID(r.Context()); id != "" {
				tagged := l.With().Str("request_id", id).Logger()
				l = &tagged
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			e := l.Info()
			if opt.Slow > 0 && took >= opt.Slow {
				e = l.Warn()
			}
			e.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int64("content_length", r.ContentLength).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", took).
				Msg("request done")
		})
	}
}
