package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"
	pnet "eventsink/internal/platform/net"
	phttp "eventsink/internal/platform/net/http"
)

var errPanic = perr.New(perr.ErrorCodePanic, "panic recovered")

// RecoverJSON answers a panicking handler with the 500 error envelope.
// http.ErrAbortHandler passes through so the server can drop the connection
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			switch v := recover(); v {
			case nil:
			case stdhttp.ErrAbortHandler:
				panic(v)
			default:
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if id := pnet.RequestID(r.Context()); id != "" {
					w.Header().Set("X-Request-ID", id)
				}
				phttp.RespondError(w, r, errPanic)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
