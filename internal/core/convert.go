package core

// convert.go rewrites cell values from Lovable exports into what a Supabase
// CSV import expects.
//
// Lovable serializes array columns as JSON-ish text:
//
//	["PETG","TPU"]
//	["Bambu Lab A1","Bambu Lab A1 mini"]
//
// PostgreSQL array columns want array literals instead:
//
//	{PETG,TPU}
//	{"Bambu Lab A1","Bambu Lab A1 mini"}
//
// All functions return pgtype.Text with Valid=false for values that must be
// written as NULL (an empty field in the output CSV).

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// EmptyPgArray is the PostgreSQL literal for an empty array.
const EmptyPgArray = "{}"

// NullIfEmpty converts a raw cell to pgtype.Text.
// Returns invalid for the empty string; any other value passes through untouched.
func NullIfEmpty(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgArray converts a JSON-style array string into a PostgreSQL array literal.
//
//	""                         -> NULL
//	"[]"                       -> {}
//	`["A"]`                    -> {A}
//	`["A, B","C"]`             -> {"A, B",C}
//	"PETG"                     -> PETG (not an array, passed through)
//
// Surrounding whitespace and one layer of double quotes are removed before the
// value is inspected. Values that are not bracketed come back as that cleaned
// string. Items are split on commas outside double quotes; every '"' toggles
// the quoted state and is dropped, so escaped quotes inside items are not
// supported. Empty items are skipped. An item is re-quoted when it contains
// a comma or a space.
func ToPgArray(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}

	v := trimQuoteLayer(strings.TrimSpace(s))
	if !isBracketed(v) {
		return pgtype.Text{String: v, Valid: true}
	}

	body := v[1 : len(v)-1]
	if strings.TrimSpace(body) == "" {
		return pgtype.Text{String: EmptyPgArray, Valid: true}
	}

	return pgtype.Text{String: formatPgArray(splitArrayItems(body)), Valid: true}
}

// UnbalancedArrayQuotes reports whether s looks like a bracketed array whose
// body holds an odd number of double quotes. ToPgArray still converts such
// values on a best-effort basis; callers use this to warn about them.
func UnbalancedArrayQuotes(s string) bool {
	v := trimQuoteLayer(strings.TrimSpace(s))
	if !isBracketed(v) {
		return false
	}
	return strings.Count(v[1:len(v)-1], `"`)%2 != 0
}

func isBracketed(v string) bool {
	return strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")
}

// trimQuoteLayer removes at most one leading and one trailing double quote.
func trimQuoteLayer(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

// splitArrayItems scans body with a two-state (inside/outside quotes) machine.
func splitArrayItems(body string) []string {
	var (
		items    []string
		current  strings.Builder
		inQuotes bool
	)

	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			items = append(items, trimQuoteLayer(item))
		}
		current.Reset()
	}

	for _, r := range body {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return items
}

func formatPgArray(items []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(item, ", ") {
			b.WriteByte('"')
			b.WriteString(item)
			b.WriteByte('"')
		} else {
			b.WriteString(item)
		}
	}
	b.WriteByte('}')
	return b.String()
}
