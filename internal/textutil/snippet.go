package textutil

import (
	"strings"
)

// PlainText flattens an LSP snippet body to the text it would insert,
// best effort. Tabstops and variables are dropped, placeholder defaults
// and the first entry of a choice list are kept, backslash escapes are
// unwrapped. Used to derive the filter word for snippet-format items;
// actual expansion is the host surface's job.
func PlainText(body string) string {
	var b strings.Builder
	b.Grow(len(body))
	i := 0
	for i < len(body) {
		switch body[i] {
		case '\\':
			if i+1 < len(body) {
				b.WriteByte(body[i+1])
				i += 2
			} else {
				b.WriteByte('\\')
				i++
			}
		case '$':
			i = flattenExpansion(&b, body, i)
		default:
			b.WriteByte(body[i])
			i++
		}
	}
	return b.String()
}

// flattenExpansion consumes one $-expansion starting at i and returns the
// index of the first byte after it. Unparseable input is kept literally.
func flattenExpansion(b *strings.Builder, body string, i int) int {
	j := i + 1
	if j >= len(body) {
		b.WriteByte('$')
		return j
	}
	// $0, $1, ... and bare $name tabstops insert nothing.
	if isTabstopByte(body[j]) {
		for j < len(body) && isTabstopByte(body[j]) {
			j++
		}
		return j
	}
	if body[j] != '{' {
		b.WriteByte('$')
		return j
	}
	end := matchBrace(body, j)
	if end < 0 {
		b.WriteByte('$')
		return j
	}
	inner := body[j+1 : end]
	if colon := strings.IndexByte(inner, ':'); colon >= 0 {
		// ${1:default} - the default may itself contain expansions.
		b.WriteString(PlainText(inner[colon+1:]))
		return end + 1
	}
	if pipe := strings.IndexByte(inner, '|'); pipe >= 0 {
		// ${1|one,two|} - keep the first choice.
		choices := strings.TrimSuffix(inner[pipe+1:], "|")
		if comma := strings.IndexByte(choices, ','); comma >= 0 {
			choices = choices[:comma]
		}
		b.WriteString(choices)
		return end + 1
	}
	// ${1}, ${name}, ${name/regex/fmt/} - nothing to insert.
	return end + 1
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
// Skips escaped characters and nested braces.
func matchBrace(body string, open int) int {
	depth := 0
	for i := open; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isTabstopByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
