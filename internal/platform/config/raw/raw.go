// Package raw reads environment variables without touching the logger, so the
// logger can configure itself from it
package raw

import (
	"os"
	"strings"
)

// Conf looks up variables under a fixed prefix
type Conf struct {
	prefix string
	lookup func(string) (string, bool)
}

// New reads from the process environment
func New() Conf { return Conf{lookup: os.LookupEnv} }

// FromMap reads from m; handy in tests that must not touch the real env
func FromMap(m map[string]string) Conf {
	return Conf{lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

// Prefix nests p under the current prefix, so New().Prefix("CORE_").Prefix("EXPORT_") reads CORE_EXPORT_*
func (c Conf) Prefix(p string) Conf {
	c.prefix += p
	return c
}

func (c Conf) value(k string) string {
	if c.lookup == nil {
		c.lookup = os.LookupEnv
	}
	v, _ := c.lookup(c.prefix + k)
	return strings.TrimSpace(v)
}

// Get returns the value of k, or def when unset or blank
func (c Conf) Get(k, def string) string {
	if v := c.value(k); v != "" {
		return v
	}
	return def
}

// GetBool treats 1, true, yes and on as true; anything else set is false
func (c Conf) GetBool(k string, def bool) bool {
	switch strings.ToLower(c.value(k)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
