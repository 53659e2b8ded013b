package complete

import (
	"context"

	protocol "go.lsp.dev/protocol"

	"popfill/pkg/editor"
	"popfill/pkg/provider"
)

// Accept runs the side-effect pipeline for the entry the user confirmed:
// clear the typed placeholder when a snippet follows, apply additional
// text edits (resolving them on demand first), expand the snippet body
// and execute the item's command. Entries without pipeline metadata came
// from another source and are left entirely to the host.
func (e *Engine) Accept(surfaceID string, entry editor.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg := e.regs[surfaceID]
	if reg == nil {
		return
	}
	e.shown = false
	start := e.session.AcceptStart
	e.cancelPendingLocked()
	e.session.Reset()
	e.cache.Invalidate()

	meta := entry.Meta
	if meta.Item == nil || meta.ProviderID == "" {
		return
	}
	pr, ok := reg.providers[meta.ProviderID]
	if !ok {
		// Provider was disabled between submission and acceptance.
		return
	}
	item := *meta.Item
	snippet := isSnippet(item)
	buf := reg.buf
	ctx := context.Background()

	switch {
	case len(item.AdditionalTextEdits) > 0:
		e.clearPlaceholder(buf, start, snippet)
		e.applyTextEdits(buf, item.AdditionalTextEdits)
		e.finish(ctx, buf, pr, item, snippet, item.Command)
	case pr.Options().ResolveProvider && e.cfg.Resolve.Enabled:
		tick := buf.Changedtick()
		go e.resolveThenApply(ctx, meta.ProviderID, pr, buf, item, snippet, start, tick)
	default:
		e.clearPlaceholder(buf, start, snippet)
		e.finish(ctx, buf, pr, item, snippet, item.Command)
	}
}

// resolveThenApply performs the deferred completionItem/resolve round
// trip. The changedtick recorded at acceptance is the staleness token: if
// the buffer moved on while resolving, applying anything now would land
// in the wrong place, so the whole acceptance is dropped.
func (e *Engine) resolveThenApply(ctx context.Context, id string, pr provider.Provider, buf editor.Buffer, item protocol.CompletionItem, snippet bool, start int, tick int64) {
	resolved, err := pr.Resolve(ctx, item)
	e.mu.Lock()
	defer e.mu.Unlock()
	if buf.Changedtick() != tick {
		e.logger.Debugf("dropping stale resolve for %s", id)
		return
	}
	edits := item.AdditionalTextEdits
	cmd := item.Command
	if err != nil {
		// The primary insertion must not be lost over a broken resolve;
		// proceed with whatever the unresolved item carried.
		e.logger.Errorf("resolve failed for %s: %v", id, err)
	} else if resolved != nil {
		if len(resolved.AdditionalTextEdits) > 0 {
			edits = resolved.AdditionalTextEdits
		}
		if resolved.Command != nil {
			cmd = resolved.Command
		}
	}
	e.clearPlaceholder(buf, start, snippet)
	e.applyTextEdits(buf, edits)
	e.finish(ctx, buf, pr, item, snippet, cmd)
}

// clearPlaceholder deletes the span from the recorded acceptance start to
// the cursor. Only done when a snippet expansion follows; for plain items
// the host already inserted the word.
func (e *Engine) clearPlaceholder(buf editor.Buffer, start int, snippet bool) {
	if !snippet || start < 0 {
		return
	}
	row, col := buf.Cursor()
	if start < col {
		buf.Replace(row, start, col, "")
	}
}

// applyTextEdits applies auxiliary edits (imports, attribute lines). The
// buffer surface is line oriented, so edits spanning rows are skipped
// with a warning rather than applied partially.
func (e *Engine) applyTextEdits(buf editor.Buffer, edits []protocol.TextEdit) {
	for i := range edits {
		ed := &edits[i]
		if ed.Range.Start.Line != ed.Range.End.Line {
			e.logger.Warnf("skipping multi-line text edit at %d", ed.Range.Start.Line)
			continue
		}
		buf.Replace(int(ed.Range.Start.Line), int(ed.Range.Start.Character), int(ed.Range.End.Character), ed.NewText)
	}
}

// finish expands the snippet body and runs the item's command, in that
// order.
func (e *Engine) finish(ctx context.Context, buf editor.Buffer, pr provider.Provider, item protocol.CompletionItem, snippet bool, cmd *protocol.Command) {
	if snippet {
		body := item.InsertText
		if item.TextEdit != nil {
			body = item.TextEdit.NewText
		}
		buf.ExpandSnippet(body)
	}
	if cmd != nil {
		if err := pr.Exec(ctx, cmd); err != nil {
			e.logger.Errorf("command %q failed: %v", cmd.Command, err)
		}
	}
}

// isSnippet reports whether acceptance must go through the host snippet
// engine. The format flag alone is not enough: an item with neither edit
// nor insert text has no body to expand.
func isSnippet(item protocol.CompletionItem) bool {
	if item.InsertTextFormat != protocol.InsertTextFormatSnippet {
		return false
	}
	return item.TextEdit != nil || item.InsertText != ""
}
