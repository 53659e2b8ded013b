package candidate

import (
	protocol "go.lsp.dev/protocol"
)

// ProviderBoundary scans items whose text edit starts on row and returns
// the one start column they all share. More than one distinct start
// column (postfix plugins anchoring replacements at different offsets)
// makes the provider boundary unusable, ok=false; so does a batch with no
// edit ranges on the row at all.
func ProviderBoundary(items []protocol.CompletionItem, row int) (col int, ok bool) {
	found := false
	for i := range items {
		edit := items[i].TextEdit
		if edit == nil || int(edit.Range.Start.Line) != row {
			continue
		}
		start := int(edit.Range.Start.Character)
		if found && start != col {
			return 0, false
		}
		col = start
		found = true
	}
	return col, found
}

// Reconcile picks the single boundary used for filtering and replacement.
// The provider boundary is trusted only when it is consistent within the
// batch and stable across the whole incomplete-completion exchange: once
// an earlier batch established a boundary, a provider that moves it loses
// to the local word start.
func Reconcile(local int, providerCol int, providerOK bool, established *int) int {
	if !providerOK {
		return local
	}
	if established != nil && *established != providerCol {
		return local
	}
	return providerCol
}
