// Package candidate turns raw provider results into the uniform records
// the host popup displays, and reconciles replacement boundaries between
// the locally scanned word start and provider-declared edit ranges.
package candidate

import (
	protocol "go.lsp.dev/protocol"
)

// Candidate is one normalized completion record. Word drives prefix
// filtering and insertion while navigating; Abbr drives display. They
// diverge for snippet and postfix completions.
type Candidate struct {
	Word       string
	Abbr       string
	Kind       string
	Menu       string
	Info       string
	Deprecated bool

	// Item is the originating protocol record, kept for acceptance.
	Item       protocol.CompletionItem
	ProviderID string
}

// kindLabels maps protocol item kinds to the short tags shown in the
// popup's kind column.
var kindLabels = map[protocol.CompletionItemKind]string{
	protocol.CompletionItemKindText:          "text",
	protocol.CompletionItemKindMethod:        "method",
	protocol.CompletionItemKindFunction:      "function",
	protocol.CompletionItemKindConstructor:   "constructor",
	protocol.CompletionItemKindField:         "field",
	protocol.CompletionItemKindVariable:      "variable",
	protocol.CompletionItemKindClass:         "class",
	protocol.CompletionItemKindInterface:     "interface",
	protocol.CompletionItemKindModule:        "module",
	protocol.CompletionItemKindProperty:      "property",
	protocol.CompletionItemKindUnit:          "unit",
	protocol.CompletionItemKindValue:         "value",
	protocol.CompletionItemKindEnum:          "enum",
	protocol.CompletionItemKindKeyword:       "keyword",
	protocol.CompletionItemKindSnippet:       "snippet",
	protocol.CompletionItemKindColor:         "color",
	protocol.CompletionItemKindFile:          "file",
	protocol.CompletionItemKindReference:     "reference",
	protocol.CompletionItemKindFolder:        "folder",
	protocol.CompletionItemKindEnumMember:    "enum member",
	protocol.CompletionItemKindConstant:      "constant",
	protocol.CompletionItemKindStruct:        "struct",
	protocol.CompletionItemKindEvent:         "event",
	protocol.CompletionItemKindOperator:      "operator",
	protocol.CompletionItemKindTypeParameter: "type parameter",
}

// KindLabel returns the display tag for a protocol item kind.
func KindLabel(kind protocol.CompletionItemKind) string {
	if s, ok := kindLabels[kind]; ok {
		return s
	}
	return ""
}
