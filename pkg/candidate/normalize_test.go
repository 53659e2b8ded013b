package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "go.lsp.dev/protocol"

	"popfill/pkg/provider"
)

func bareResult(items ...protocol.CompletionItem) *provider.Result {
	return &provider.Result{Items: items}
}

func TestNormalizeEmpty(t *testing.T) {
	m := NewMatcher("exact")
	assert.Empty(t, Normalize(nil, "fo", "p", m))
	assert.Empty(t, Normalize(bareResult(), "fo", "p", m))
}

func TestNormalizeFilterRule(t *testing.T) {
	m := NewMatcher("exact")
	res := bareResult(
		protocol.CompletionItem{Label: "foo"},
		protocol.CompletionItem{Label: "bar"},
		protocol.CompletionItem{Label: "zap", FilterText: "fob"},
		protocol.CompletionItem{Label: "unrelated", TextEdit: editAt(0, 0)},
	)

	got := Normalize(res, "fo", "p", m)

	require.Len(t, got, 3)
	words := []string{got[0].Abbr, got[1].Abbr, got[2].Abbr}
	assert.Contains(t, words, "foo")
	assert.Contains(t, words, "zap")       // filterText matched
	assert.Contains(t, words, "unrelated") // text edit passes unconditionally
}

func TestNormalizeNoWordCharPrefixAcceptsAll(t *testing.T) {
	m := NewMatcher("exact")
	res := bareResult(
		protocol.CompletionItem{Label: "foo"},
		protocol.CompletionItem{Label: "bar"},
	)
	assert.Len(t, Normalize(res, ".", "p", m), 2)
}

func TestNormalizeSmartCase(t *testing.T) {
	res := bareResult(protocol.CompletionItem{Label: "Foo"})

	assert.Len(t, Normalize(res, "fo", "p", NewMatcher("smartcase")), 1)
	assert.Empty(t, Normalize(res, "fo", "p", NewMatcher("exact")))
}

func TestNormalizeSnippetWordDerivation(t *testing.T) {
	m := NewMatcher("exact")

	// Parsed text longer than label: keep the label.
	long := bareResult(protocol.CompletionItem{
		Label:            "insert",
		InsertTextFormat: protocol.InsertTextFormatSnippet,
		InsertText:       "table.insert(${1:f}, $0)",
	})
	got := Normalize(long, "ins", "p", m)
	require.Len(t, got, 1)
	assert.Equal(t, "insert", got[0].Word)
	assert.Equal(t, "insert", got[0].Abbr)

	// Parsed text shorter than label: leading word run of the parse.
	short := bareResult(protocol.CompletionItem{
		Label:            "insert",
		InsertTextFormat: protocol.InsertTextFormatSnippet,
		InsertText:       "${1:f}",
		TextEdit:         nil,
	})
	got = Normalize(short, "", "p", m)
	require.Len(t, got, 1)
	assert.Equal(t, "f", got[0].Word)
	assert.Equal(t, "insert", got[0].Abbr)
}

func TestNormalizeSnippetFilterTextFallback(t *testing.T) {
	// Derived word "f" fails the prefix predicate; filterText takes over.
	res := bareResult(protocol.CompletionItem{
		Label:            "insert",
		FilterText:       "ins",
		InsertTextFormat: protocol.InsertTextFormatSnippet,
		InsertText:       "${1:f}",
	})
	got := Normalize(res, "in", "p", NewMatcher("exact"))
	require.Len(t, got, 1)
	assert.Equal(t, "ins", got[0].Word)
}

func TestNormalizePlainWordDerivation(t *testing.T) {
	m := NewMatcher("exact")

	edit := bareResult(protocol.CompletionItem{
		Label:    "toString",
		TextEdit: &protocol.TextEdit{Range: protocol.Range{}, NewText: "toString() extra"},
	})
	got := Normalize(edit, "", "p", m)
	require.Len(t, got, 1)
	assert.Equal(t, "toString()", got[0].Word)

	insert := bareResult(protocol.CompletionItem{Label: "print", InsertText: "println"})
	got = Normalize(insert, "", "p", m)
	require.Len(t, got, 1)
	assert.Equal(t, "println", got[0].Word)

	label := bareResult(protocol.CompletionItem{Label: "fallback"})
	got = Normalize(label, "", "p", m)
	require.Len(t, got, 1)
	assert.Equal(t, "fallback", got[0].Word)
}

func TestNormalizeSortOrder(t *testing.T) {
	m := NewMatcher("exact")
	res := bareResult(
		protocol.CompletionItem{Label: "b"},
		protocol.CompletionItem{Label: "a"},
		protocol.CompletionItem{Label: "c", SortText: "0"},
	)

	got := Normalize(res, "", "p", m)

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Abbr)
	assert.Equal(t, "a", got[1].Abbr)
	assert.Equal(t, "b", got[2].Abbr)
}

func TestNormalizeDeprecated(t *testing.T) {
	m := NewMatcher("exact")
	res := bareResult(
		protocol.CompletionItem{Label: "old", Deprecated: true},
		protocol.CompletionItem{Label: "tagged", Tags: []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}},
		protocol.CompletionItem{Label: "fresh"},
	)

	got := Normalize(res, "", "p", m)

	require.Len(t, got, 3)
	byAbbr := map[string]bool{}
	for _, c := range got {
		byAbbr[c.Abbr] = c.Deprecated
	}
	assert.True(t, byAbbr["old"])
	assert.True(t, byAbbr["tagged"])
	assert.False(t, byAbbr["fresh"])
}

func TestDocText(t *testing.T) {
	assert.Equal(t, "plain", DocText("plain"))
	assert.Equal(t, "markup", DocText(protocol.MarkupContent{Kind: protocol.Markdown, Value: "markup"}))
	assert.Equal(t, "mapped", DocText(map[string]any{"kind": "markdown", "value": "mapped"}))
	assert.Equal(t, "", DocText(nil))
	assert.Equal(t, "", DocText(42), "unexpected shape degrades to empty")
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	res := &provider.Result{
		Defaults: &provider.ItemDefaults{InsertTextFormat: protocol.InsertTextFormatSnippet},
		Items: []protocol.CompletionItem{
			{Label: "insert", InsertText: "${1:f}"},
		},
	}
	got := Normalize(res, "", "p", NewMatcher("exact"))
	require.Len(t, got, 1)
	assert.Equal(t, "f", got[0].Word, "defaulted snippet format drives word derivation")
}
