// Package logger owns the process-wide zerolog logger and the context keys
// that tag lines with the request or batch being handled
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"eventsink/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the type every package logs through
type Logger = zerolog.Logger

// Options describes the root logger. Fields is added to every line
type Options struct {
	Level      string
	Format     string
	Service    string
	Component  string
	WithCaller bool
	Fields     map[string]string
	Writer     io.Writer
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE, LOG_COMPONENT and LOG_CALLER
func FromEnv() Options {
	return fromConf(raw.New().Prefix("LOG_"))
}

func fromConf(c raw.Conf) Options {
	return Options{
		Level:      strings.ToLower(c.Get("LEVEL", "info")),
		Format:     strings.ToLower(c.Get("FORMAT", "json")),
		Service:    c.Get("SERVICE", "eventsink"),
		Component:  c.Get("COMPONENT", ""),
		WithCaller: c.GetBool("CALLER", false),
	}
}

var (
	initOnce sync.Once
	root     atomic.Pointer[Logger]
)

// Init builds the root logger. Only the first call has any effect
func Init(opt Options) {
	initOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		l := build(opt)
		root.Store(&l)
	})
}

// Get returns the root logger, initialising it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

func build(opt Options) Logger {
	out := opt.Writer
	if out == nil {
		out = os.Stdout
	}
	if opt.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	fields := map[string]any{}
	for k, v := range opt.Fields {
		fields[k] = v
	}
	if opt.Service != "" {
		fields["service"] = opt.Service
	}
	if opt.Component != "" {
		fields["component"] = opt.Component
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fields["go_version"] = bi.GoVersion
	}

	zc := zerolog.New(out).Level(level(opt.Level)).With().Timestamp().Fields(fields)
	if opt.WithCaller {
		zc = zc.Caller()
	}
	return zc.Logger()
}

// level falls back to info for anything zerolog cannot parse
func level(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Named tags lines with component
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

type ctxKey int

const (
	requestKey ctxKey = iota
	batchKey
)

// WithRequest stores the request id on ctx; an empty id returns ctx as is
func WithRequest(ctx context.Context, id string) context.Context {
	return withID(ctx, requestKey, id)
}

// WithBatch stores the id of the batch being delivered
func WithBatch(ctx context.Context, id string) context.Context {
	return withID(ctx, batchKey, id)
}

func withID(ctx context.Context, k ctxKey, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, k, id)
}

// C returns the root logger tagged with whatever ids ctx carries
func C(ctx context.Context) *Logger {
	zc := Get().With()
	if id, _ := ctx.Value(requestKey).(string); id != "" {
		zc = zc.Str("request_id", id)
	}
	if id, _ := ctx.Value(batchKey).(string); id != "" {
		zc = zc.Str("batch_id", id)
	}
	l := zc.Logger()
	return &l
}
