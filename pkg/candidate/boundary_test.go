package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "go.lsp.dev/protocol"
)

func editAt(line, char uint32) *protocol.TextEdit {
	return &protocol.TextEdit{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: char},
			End:   protocol.Position{Line: line, Character: char + 2},
		},
	}
}

func TestProviderBoundaryConsistent(t *testing.T) {
	items := []protocol.CompletionItem{
		{Label: "a", TextEdit: editAt(0, 3)},
		{Label: "b", TextEdit: editAt(0, 3)},
		{Label: "c"}, // no edit, does not vote
	}
	col, ok := ProviderBoundary(items, 0)
	assert.True(t, ok)
	assert.Equal(t, 3, col)
}

func TestProviderBoundaryDisagreement(t *testing.T) {
	items := []protocol.CompletionItem{
		{Label: "a", TextEdit: editAt(0, 3)},
		{Label: "b", TextEdit: editAt(0, 5)},
	}
	_, ok := ProviderBoundary(items, 0)
	assert.False(t, ok, "distinct start columns make the boundary unusable")
}

func TestProviderBoundaryOtherLineIgnored(t *testing.T) {
	items := []protocol.CompletionItem{
		{Label: "a", TextEdit: editAt(4, 7)},
	}
	_, ok := ProviderBoundary(items, 0)
	assert.False(t, ok)
}

func TestReconcile(t *testing.T) {
	// No usable provider boundary: local wins.
	assert.Equal(t, 2, Reconcile(2, 0, false, nil))

	// Consistent fresh provider boundary wins over local.
	assert.Equal(t, 0, Reconcile(2, 0, true, nil))

	// Established boundary from an earlier batch in the same exchange:
	// a moved provider boundary loses to local.
	established := 0
	assert.Equal(t, 2, Reconcile(2, 1, true, &established))
	assert.Equal(t, 0, Reconcile(2, 0, true, &established))
}
