// Package provider declares the completion provider boundary and the raw
// result shapes coming back from it. Transports (RPC, stdio, in-process)
// implement Provider; the pipeline consumes already-deserialized records
// and never touches wire bytes.
package provider

import (
	"context"

	protocol "go.lsp.dev/protocol"

	"popfill/pkg/editor"
)

// TriggerKind says why a completion query is being sent.
type TriggerKind int

const (
	// TriggerInvoked is a manual invocation.
	TriggerInvoked TriggerKind = iota + 1
	// TriggerCharacter means a declared trigger character was typed.
	TriggerCharacter
	// TriggerIncomplete is a follow-up query for an isIncomplete result.
	TriggerIncomplete
)

// Params is the position context sent with every completion query.
type Params struct {
	Row  int
	Col  int
	Line string
	Kind TriggerKind
	// Char is the typed trigger character when Kind is TriggerCharacter.
	Char string
}

// ConvertFunc lets external glue adjust an entry's display representation
// before submission. The pipeline's own fields are reapplied afterwards,
// so a hook can not override word or metadata.
type ConvertFunc func(item protocol.CompletionItem, entry editor.Entry) editor.Entry

// Options describes a provider's declared capabilities for one surface.
type Options struct {
	TriggerCharacters []string
	ResolveProvider   bool
	AutoTrigger       bool
	Convert           ConvertFunc
}

// Provider is one external completion source. Calls are expected to be
// reliably completed or erred by the transport; cancellation through the
// context is advisory.
type Provider interface {
	Complete(ctx context.Context, p Params) (*Result, error)
	Resolve(ctx context.Context, item protocol.CompletionItem) (*protocol.CompletionItem, error)
	Exec(ctx context.Context, cmd *protocol.Command) error
	Options() Options
}

// Outcome is the per-provider record a request batch collects. A provider
// that errors never blocks the others; the batch completes when every
// outcome, success or error, is in.
type Outcome struct {
	ProviderID string
	Result     *Result
	Err        error
}
