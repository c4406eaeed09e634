// Package middleware is the HTTP middleware stack in front of the capture
// routes. chi and go-chi/cors types stay inside this package
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

func RequestID() func(http.Handler) http.Handler { return chimw.RequestID }

// RealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP; the capture
// handlers take the event ip from RemoteAddr
func RealIP() func(http.Handler) http.Handler { return chimw.RealIP }

func Timeout(d time.Duration) func(http.Handler) http.Handler { return chimw.Timeout(d) }

func NoCache() func(http.Handler) http.Handler { return chimw.NoCache }

// CORSOptions narrows go-chi/cors to what the capture API needs. Empty lists
// take the defaults in CORS
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func orDefault(v, def []string) []string {
	if len(v) > 0 {
		return v
	}
	return def
}

// CORS lets browser SDKs post events cross-origin, gzip bodies included
func CORS(o CORSOptions) func(http.Handler) http.Handler {
	return chicors.Handler(chicors.Options{
		AllowedOrigins:   orDefault(o.AllowedOrigins, []string{"*"}),
		AllowedMethods:   orDefault(o.AllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		AllowedHeaders:   orDefault(o.AllowedHeaders, []string{"Accept", "Content-Type", "Content-Encoding", "X-Request-ID"}),
		AllowCredentials: o.AllowCredentials,
		MaxAge:           o.MaxAge,
	})
}

// StackOptions configures Defaults
type StackOptions struct {
	// Timeout cancels each request's context; 0 leaves it uncancelled
	Timeout time.Duration
	// SlowRequest raises the access log line to warn
	SlowRequest time.Duration
}

// quiet paths never get an access log line
var quiet = []string{"/healthz", "/readyz", "/metrics"}

// Defaults is the stack mounted in front of the capture routes, outermost first
func Defaults(o StackOptions) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		RealIP(),
		RequestID(),
		RequestLogger(),
		AccessLog(AccessLogOptions{Slow: o.SlowRequest, Skip: quiet}),
		RecoverJSON,
	}
	if o.Timeout > 0 {
		stack = append(stack, Timeout(o.Timeout))
	}
	return append(stack, NoCache())
}
