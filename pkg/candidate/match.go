package candidate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"popfill/pkg/config"
)

// Mode selects the prefix match predicate. Exactly one mode is active,
// picked from configuration.
type Mode int

const (
	// ModeExact is a plain case-sensitive prefix match.
	ModeExact Mode = iota
	// ModeSmartCase ignores case as long as the typed prefix contains no
	// uppercase letter.
	ModeSmartCase
	// ModeFuzzy matches the prefix as an in-order subsequence.
	ModeFuzzy
)

// Matcher applies the active match mode.
type Matcher struct {
	mode Mode
}

// NewMatcher builds a Matcher for a config mode name.
func NewMatcher(mode string) Matcher {
	switch mode {
	case config.MatchFuzzy:
		return Matcher{mode: ModeFuzzy}
	case config.MatchExact:
		return Matcher{mode: ModeExact}
	default:
		return Matcher{mode: ModeSmartCase}
	}
}

// Mode returns the active match mode.
func (m Matcher) Mode() Mode { return m.mode }

// Match reports whether text is a completion of the typed prefix under
// the active mode. An empty prefix matches everything.
func (m Matcher) Match(prefix, text string) bool {
	if prefix == "" {
		return true
	}
	switch m.mode {
	case ModeFuzzy:
		return fuzzyMatch(prefix, text)
	case ModeSmartCase:
		if hasUpper(prefix) {
			return strings.HasPrefix(text, prefix)
		}
		return hasPrefixFold(text, prefix)
	default:
		return strings.HasPrefix(text, prefix)
	}
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}

// fuzzyMatch walks the candidate looking for the pattern runes in order,
// case folded. Scoring is the popup's concern; filtering only needs the
// boolean.
func fuzzyMatch(pattern, candidate string) bool {
	pi := 0
	pr := []rune(pattern)
	for _, cr := range candidate {
		if pi >= len(pr) {
			return true
		}
		if equalFold(cr, pr[pi]) {
			pi++
		}
	}
	return pi >= len(pr)
}

// equalFold performs case-insensitive rune equality, ASCII fast path
// first.
func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	if a < utf8.RuneSelf && b < utf8.RuneSelf {
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		return a == b
	}
	return strings.EqualFold(string(a), string(b))
}
