// Package sqlident reduces configured names to safe SQL identifiers by
// deleting every character outside the allowed set. Nothing is escaped and
// nothing is rejected; an empty result is the caller's problem
package sqlident

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

func word(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

var (
	plain  = runes.Remove(runes.Predicate(func(r rune) bool { return !word(r) }))
	dotted = runes.Remove(runes.Predicate(func(r rune) bool { return !word(r) && r != '.' }))
)

// Sanitize keeps only [A-Za-z0-9_]
func Sanitize(name string) string { return apply(plain, name) }

// SanitizeDotted also keeps '.', for schema qualified names
func SanitizeDotted(name string) string { return apply(dotted, name) }

func apply(t transform.Transformer, s string) string {
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

// Qualified joins a sanitized schema and table; an empty schema yields the bare table
func Qualified(schema, table string) string {
	schema, table = Sanitize(schema), Sanitize(table)
	if schema == "" {
		return table
	}
	return schema + "." + table
}
