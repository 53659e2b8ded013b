package candidate

import (
	"sort"

	"github.com/charmbracelet/log"
	protocol "go.lsp.dev/protocol"

	"popfill/internal/textutil"
	"popfill/pkg/provider"
)

// Normalize converts a raw provider result into candidate records:
// batch defaults merged (fill-only), items filtered against the typed
// prefix, the filter word derived per item, deprecated highlighting
// tagged, and a stable sort by sortText-else-label applied.
//
// An empty or absent item list yields an empty result, never an error.
func Normalize(res *provider.Result, prefix, providerID string, m Matcher) []Candidate {
	if res == nil || len(res.Items) == 0 {
		return nil
	}
	res.ApplyDefaults()

	// A prefix without word characters (trigger chars like "." or ">")
	// means the provider has the full picture; accept everything.
	filtering := textutil.HasWordChar(prefix)

	cands := make([]Candidate, 0, len(res.Items))
	for i := range res.Items {
		item := res.Items[i]
		if filtering && !acceptItem(item, prefix, m) {
			continue
		}
		cands = append(cands, Candidate{
			Word:       deriveWord(item, prefix, m),
			Abbr:       item.Label,
			Kind:       KindLabel(item.Kind),
			Menu:       item.Detail,
			Info:       DocText(item.Documentation),
			Deprecated: isDeprecated(item),
			Item:       item,
			ProviderID: providerID,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return sortKey(cands[i].Item) < sortKey(cands[j].Item)
	})
	return cands
}

// acceptItem applies the filter rule: filterText when present, otherwise
// items carrying a text edit pass unconditionally (the provider already
// filtered), otherwise the label must match.
func acceptItem(item protocol.CompletionItem, prefix string, m Matcher) bool {
	if item.FilterText != "" {
		return m.Match(prefix, item.FilterText)
	}
	if item.TextEdit != nil {
		return true
	}
	return m.Match(prefix, item.Label)
}

// deriveWord computes the text used for prefix matching and placeholder
// insertion. Display keeps the label; the word may be shorter (snippets)
// or longer (postfix edits).
func deriveWord(item protocol.CompletionItem, prefix string, m Matcher) string {
	if item.InsertTextFormat == protocol.InsertTextFormatSnippet &&
		(item.TextEdit != nil || item.InsertText != "") {
		body := item.InsertText
		if item.TextEdit != nil {
			body = item.TextEdit.NewText
		}
		parsed := textutil.PlainText(body)
		word := item.Label
		if len(parsed) < len(item.Label) {
			word = textutil.LeadingWordRun(parsed)
		}
		if item.FilterText != "" && !m.Match(prefix, word) {
			word = item.FilterText
		}
		return word
	}
	if item.TextEdit != nil {
		return textutil.LeadingNonBlank(item.TextEdit.NewText)
	}
	if item.InsertText != "" {
		return item.InsertText
	}
	return item.Label
}

// isDeprecated reports the deprecated highlight from either the legacy
// flag or the tag set.
func isDeprecated(item protocol.CompletionItem) bool {
	if item.Deprecated {
		return true
	}
	for _, tag := range item.Tags {
		if tag == protocol.CompletionItemTagDeprecated {
			return true
		}
	}
	return false
}

// DocText extracts documentation from the union shapes the protocol
// allows. Unexpected shapes are logged and treated as empty, never as an
// item failure.
func DocText(doc any) string {
	switch v := doc.(type) {
	case nil:
		return ""
	case string:
		return v
	case protocol.MarkupContent:
		return v.Value
	case *protocol.MarkupContent:
		if v == nil {
			return ""
		}
		return v.Value
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s
		}
		log.Warnf("Malformed documentation object: missing value field")
		return ""
	default:
		log.Warnf("Malformed documentation field: unexpected type %T", doc)
		return ""
	}
}

func sortKey(item protocol.CompletionItem) string {
	if item.SortText != "" {
		return item.SortText
	}
	return item.Label
}
