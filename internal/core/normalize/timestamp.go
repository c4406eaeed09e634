package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/services/export/domain"

	json "github.com/goccy/go-json"
)

// Layout is the canonical warehouse timestamp: UTC, millisecond precision
const Layout = "2006-01-02T15:04:05.000Z"

// ErrMissingTimestamp is returned when no candidate field holds a usable time
var ErrMissingTimestamp = perr.WithField(
	perr.New(perr.ErrorCodeMissingTimestamp, "event has no usable timestamp"),
	"timestamp",
)

// layouts tried in order for string candidates; zoneless values are UTC
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp picks the first usable of the event timestamp, the timestamp
// property, now and sent_at, formatted with Layout
func Timestamp(ev domain.RawEvent) (string, error) {
	candidates := [...]any{ev.Timestamp, ev.Properties[propTimestamp], ev.Now, ev.SentAt}
	for _, c := range candidates {
		if t, ok := parse(c); ok {
			return t.UTC().Format(Layout), nil
		}
	}
	return "", ErrMissingTimestamp
}

func parse(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case string:
		return parseString(x)
	case json.Number:
		return parseString(x.String())
	case float64:
		return fromMillis(x)
	case int64:
		return time.UnixMilli(x), true
	case int:
		return time.UnixMilli(int64(x)), true
	}
	return time.Time{}, false
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromMillis(f)
	}
	return time.Time{}, false
}

func fromMillis(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	ms := math.Floor(f)
	ns := int64((f - ms) * 1e6)
	return time.UnixMilli(int64(ms)).Add(time.Duration(ns)), true
}
