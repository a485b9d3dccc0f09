// Package naming centralizes the name-mangling rules the dispatcher and
// IDL generator must agree on: RPC/method PascalCase (spec.md §4.E) and
// proto field snake_case (spec.md §4.F), grounded in the teacher's
// protoreg/naming.go capitalize/snakeCase helpers.
package naming

import "strings"

// Pascal splits name on '-' and '_', capitalizes each segment, and joins
// them — spec.md §4.E: "PascalCase is obtained by splitting name on - and
// _, capitalizing each segment, and joining."
func Pascal(name string) string {
	segments := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(capitalize(seg))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SnakeCase converts a camelCase or PascalCase identifier to snake_case,
// for use as a generated proto field name.
func SnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
