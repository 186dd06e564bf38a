// Package cleanse rewrites escape sequences in captured text. Context
// entries often arrive with JSON-style escaping baked into the payload
// (literal backslash-n instead of a newline); Unescape flattens those in
// a single pass so the pipeline sees the text the author wrote.
package cleanse

import "strings"

// Unescape resolves backslash escapes in s:
//
//	\n  newline
//	\t  tab
//	\"  double quote
//	\\  backslash
//	\r  dropped entirely
//
// Any other escape is kept literally (the backslash and the character
// that followed it). A lone backslash at the end of input is dropped.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	escape := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if escape {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				// dropped
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(c)
			}
			escape = false
			continue
		}

		if c == '\\' {
			escape = true
			continue
		}
		b.WriteByte(c)
	}

	return b.String()
}
