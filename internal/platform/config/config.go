// Package config reads typed settings from environment variables. Must*
// getters panic on a missing or malformed value, May* getters warn and fall
// back to the default
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"eventsink/internal/platform/logger"
)

// Conf is a view over the environment scoped to a prefix such as "CORE_EXPORT_"
type Conf struct{ prefix string }

func New() Conf { return Conf{} }

// Prefix returns a view nested under p
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Key is the full variable name for k
func (c Conf) Key(k string) string { return c.prefix + k }

func (c Conf) get(k string) string { return strings.TrimSpace(os.Getenv(c.Key(k))) }

// may parses k with parse, returning def when unset and warning when malformed
func may[T any](c Conf, k string, def T, parse func(string) (T, error)) T {
	s := c.get(k)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(k)).Str("value", s).Interface("default", def).Msg("unparseable setting; using default")
		return def
	}
	return v
}

// must parses k with parse and panics when it is unset or malformed
func must[T any](c Conf, k string, parse func(string) (T, error)) T {
	s := c.get(k)
	if s == "" {
		logger.Get().Panic().Str("key", c.Key(k)).Msg("required setting missing")
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Panic().Err(err).Str("key", c.Key(k)).Str("value", s).Msg("required setting malformed")
	}
	return v
}

func str(s string) (string, error) { return s, nil }

func port(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err == nil && (p < 1 || p > 65535) {
		err = strconv.ErrRange
	}
	return p, err
}

func (c Conf) MustString(k string) string { return must(c, k, str) }

func (c Conf) MustInt(k string) int { return must(c, k, strconv.Atoi) }

// MustPort validates 1..65535 and returns a listen address such as ":8000"
func (c Conf) MustPort(k string) string { return ":" + strconv.Itoa(must(c, k, port)) }

func (c Conf) MayString(k, def string) string { return may(c, k, def, str) }

func (c Conf) MayInt(k string, def int) int { return may(c, k, def, strconv.Atoi) }

func (c Conf) MayBool(k string, def bool) bool { return may(c, k, def, strconv.ParseBool) }

// MayDuration takes Go duration syntax ("30s", "1m30s")
func (c Conf) MayDuration(k string, def time.Duration) time.Duration {
	return may(c, k, def, time.ParseDuration)
}

// MayIntClamped pulls out of range values to the nearest of lo and hi
func (c Conf) MayIntClamped(k string, def, lo, hi int) int {
	v := c.MayInt(k, def)
	clamped := min(max(v, lo), hi)
	if clamped != v {
		logger.Get().Warn().Str("key", c.Key(k)).Int("value", v).Int("effective", clamped).Msg("setting out of range; clamped")
	}
	return clamped
}

// MayCSV splits on commas and drops blanks; an all-blank list is def
func (c Conf) MayCSV(k string, def []string) []string {
	var out []string
	for _, p := range strings.Split(c.get(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayEnum returns the lowercased value when it matches one of allowed
// (case-insensitively) and panics otherwise. Unset yields def
func (c Conf) MayEnum(k, def string, allowed ...string) string {
	v := c.MayString(k, def)
	if v == "" {
		return ""
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(v)
		}
	}
	logger.Get().Panic().Str("key", c.Key(k)).Str("value", v).Strs("allowed", allowed).Msg("setting not in allowed set")
	return ""
}
