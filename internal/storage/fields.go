package storage

import (
	"strings"
	"unicode"
)

// Domain code uses camelCase field names ("createdAt"); the store uses
// snake_case columns ("created_at"). The repository base translates at the
// boundary so neither side leaks its convention into the other.

// ToSnake converts a camelCase field name to snake_case.
func ToSnake(field string) string {
	var b strings.Builder
	b.Grow(len(field) + 4)
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamel converts a snake_case column name to camelCase.
func ToCamel(column string) string {
	parts := strings.Split(column, "_")
	if len(parts) == 1 {
		return column
	}
	var b strings.Builder
	b.Grow(len(column))
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// KeysToSnake rewrites every key of a record from camelCase to snake_case.
func KeysToSnake(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[ToSnake(k)] = v
	}
	return out
}

// KeysToCamel rewrites every key of a record from snake_case to camelCase.
func KeysToCamel(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[ToCamel(k)] = v
	}
	return out
}
