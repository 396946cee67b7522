// Package logparse implements the low-level encounter-log record format:
// field tokenisation, line framing, and decoding of raw records into typed
// events consumed by the ingestion state machines.
package logparse

import "strings"

// SplitFields splits one record line into fields. A `"` toggles quoting,
// a doubled `""` inside quotes is a literal quote, and `,` splits only
// outside quotes. There are no backslash escapes. Whitespace is preserved.
func SplitFields(line string) []string {
	return split(line, false)
}

// SplitFieldsBracketed splits like SplitFields but additionally tracks a
// non-negative bracket depth: `,` splits only when outside quotes and at
// depth 0. Used for records carrying unquoted lists such as player
// equipment (`[[a,b],[c,d]]`).
func SplitFieldsBracketed(line string) []string {
	return split(line, true)
}

func split(line string, brackets bool) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	depth := 0

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			inQuote = !inQuote
		case c == '[' && brackets && !inQuote:
			depth++
			b.WriteByte(c)
		case c == ']' && brackets && !inQuote:
			if depth > 0 {
				depth--
			}
			b.WriteByte(c)
		case c == ',' && !inQuote && depth == 0:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	fields = append(fields, b.String())
	return fields
}
