// Package textutil provides word boundary and snippet text helpers shared
// by the completion pipeline.
package textutil

import (
	"unicode"
	"unicode/utf8"
)

// IsWordChar reports whether r belongs to a word for completion purposes.
// Matches the usual 'keyword' class: letters, digits and underscore.
func IsWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// HasWordChar reports whether s contains at least one word character.
func HasWordChar(s string) bool {
	for _, r := range s {
		if IsWordChar(r) {
			return true
		}
	}
	return false
}

// WordStart returns the byte column where the word ending at col begins.
// col is clamped to the line length; when the character before col is not
// a word character the result equals col.
func WordStart(line string, col int) int {
	if col > len(line) {
		col = len(line)
	}
	if col < 0 {
		col = 0
	}
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !IsWordChar(r) {
			break
		}
		start -= size
	}
	return start
}

// LeadingWordRun returns the run of word characters at the start of s.
func LeadingWordRun(s string) string {
	for i, r := range s {
		if !IsWordChar(r) {
			return s[:i]
		}
	}
	return s
}

// LeadingNonBlank returns the run of non-whitespace characters at the
// start of s.
func LeadingNonBlank(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			return s[:i]
		}
	}
	return s
}
