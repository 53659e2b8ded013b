// Package editor declares the host surface boundary: the text buffer of
// record, the popup menu, and the timer capability the trigger machinery
// is scheduled on. The completion pipeline only ever talks to these
// interfaces; wiring them to a real editor is glue code outside this
// module.
package editor

import (
	protocol "go.lsp.dev/protocol"
)

// Buffer is one editable surface. Columns are byte offsets into the line.
type Buffer interface {
	// ID identifies the surface for provider registration.
	ID() string
	// Line returns the text of the given row.
	Line(row int) string
	// Cursor returns the current cursor position.
	Cursor() (row, col int)
	// Changedtick is a counter advancing on every buffer modification.
	// Used as the staleness token for deferred resolve results.
	Changedtick() int64
	// Replace substitutes line text in [start, end) on row with text.
	Replace(row, start, end int, text string)
	// InsertMode reports whether the surface is still in insertion state.
	InsertMode() bool
	// ExpandSnippet hands a snippet body to the host's snippet engine,
	// inserting at the cursor.
	ExpandSnippet(body string)
}

// Popup is the host candidate menu.
type Popup interface {
	// Show submits display entries starting at the given column. An empty
	// list closes the menu.
	Show(startCol int, entries []Entry)
}

// Entry is one display record submitted to the popup. Word drives what
// gets inserted while navigating, Abbr drives display; they may differ
// for snippet and postfix completions.
type Entry struct {
	Word  string
	Abbr  string
	Kind  string
	Menu  string
	Info  string
	Dup   bool
	Empty bool

	// Deprecated marks entries the host should render struck through
	// or dimmed.
	Deprecated bool

	// Meta carries the pipeline's own fields back through acceptance.
	// They always win over anything a convert hook put in User.
	Meta Meta
	// User holds free-form fields merged in by an external convert hook.
	User map[string]any
}

// Meta ties an entry back to its originating protocol item and provider.
// Entries without it are assumed to come from a non-protocol source and
// are ignored on acceptance.
type Meta struct {
	ProviderID string
	Item       *protocol.CompletionItem
}
