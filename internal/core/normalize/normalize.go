// Package normalize maps a captured event onto the warehouse row shape.
//
// Normalize is pure: it never mutates the event it is given and holds no
// state, so it is safe from any number of goroutines
package normalize

import (
	perr "eventsink/internal/platform/errors"
	"eventsink/internal/services/export/domain"

	json "github.com/goccy/go-json"
)

const (
	propIP        = "$ip"
	propTimestamp = "timestamp"
	propElements  = "$elements"

	emptyObject = "{}"
	emptyList   = "[]"
)

// autocapture event names; the bare form is what older SDKs sent
var autocapture = map[string]struct{}{
	"$autocapture": {},
	"autocapture":  {},
}

// Normalize builds the row for ev
func Normalize(ev domain.RawEvent) (domain.Row, error) {
	ts, err := Timestamp(ev)
	if err != nil {
		return domain.Row{}, err
	}

	props := ev.Properties
	elements := emptyList
	if _, ok := autocapture[ev.Event]; ok {
		if v, has := props[propElements]; has {
			s, err := marshal(v, emptyList, "elements")
			if err != nil {
				return domain.Row{}, err
			}
			elements = s
			props = without(props, propElements)
		}
	}

	properties, err := marshal(props, emptyObject, "properties")
	if err != nil {
		return domain.Row{}, err
	}
	set, err := marshal(ev.Set, emptyObject, "set")
	if err != nil {
		return domain.Row{}, err
	}
	setOnce, err := marshal(ev.SetOnce, emptyObject, "set_once")
	if err != nil {
		return domain.Row{}, err
	}

	return domain.Row{
		UUID:       ev.UUID,
		Event:      ev.Event,
		Properties: properties,
		Elements:   elements,
		Set:        set,
		SetOnce:    setOnce,
		DistinctID: ev.DistinctID,
		TeamID:     ev.TeamID,
		IP:         ip(ev),
		SiteURL:    ev.SiteURL,
		Timestamp:  ts,
	}, nil
}

// Size is the byte footprint the buffer accounts for a row
func Size(r domain.Row) int {
	b, err := json.Marshal(r)
	if err != nil {
		// every Row field is a string or an int
		return len(r.Properties) + len(r.Elements) + len(r.Set) + len(r.SetOnce)
	}
	return len(b)
}

func ip(ev domain.RawEvent) string {
	if s, ok := ev.Properties[propIP].(string); ok && s != "" {
		return s
	}
	return ev.IP
}

// without copies m minus key
func without(m map[string]any, key string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func marshal(v any, empty, field string) (string, error) {
	switch x := v.(type) {
	case nil:
		return empty, nil
	case map[string]any:
		if x == nil {
			return empty, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", perr.WithField(perr.Wrap(err, perr.ErrorCodeJSON, "cannot serialize event field"), field)
	}
	return string(b), nil
}
