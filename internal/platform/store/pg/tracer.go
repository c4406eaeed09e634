package pg

import (
	"context"
	"strings"
	"unicode/utf8"

	"eventsink/internal/platform/logger"

	"github.com/rs/zerolog"
)

// maxLoggedSQL caps statement text in trace lines. A 50 row insert has 550 placeholders
const maxLoggedSQL = 512

// QueryEvent is one finished statement. Bind values are left out since they
// carry event payloads
type QueryEvent struct {
	SQL       string
	ArgCount  int
	ElapsedUS int64
	Err       error
	Slow      bool
}

type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

type logTracer struct{ log logger.Logger }

// Tracer logs each statement at info, or warn when slow. It lowers the level
// of log so SQL shows even when the root logger is at warn
func Tracer(log logger.Logger) QueryTracer {
	return logTracer{log: log.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()}
}

func (t logTracer) OnQuery(_ context.Context, ev QueryEvent) {
	e := t.log.Info()
	if ev.Slow {
		e = t.log.Warn()
	}
	e.Str("sql", shorten(oneLine(ev.SQL), maxLoggedSQL)).
		Int("args", ev.ArgCount).
		Float64("elapsed_ms", float64(ev.ElapsedUS)/1e3).
		Bool("slow", ev.Slow).
		Err(ev.Err).
		Msg("pg query")
}

// oneLine collapses whitespace runs, newlines included, into single spaces
func oneLine(s string) string { return strings.Join(strings.Fields(s), " ") }

// shorten keeps the first n runes and marks the cut with "..."
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
