// Package complete is the orchestration core: the per-session context,
// the trigger state machine deciding when to fan out queries, and the
// acceptance side-effect pipeline.
package complete

import (
	"time"

	"popfill/pkg/editor"
)

// Session is the single mutable context shared by the trigger controller,
// the request coordinator and the acceptance handler. It lives on one
// logical thread (the engine lock); mutations are ordered cancel-first so
// a superseded batch can never overwrite fresher state.
type Session struct {
	// AcceptStart is the column the accepted insertion began at. It must
	// survive Reset because the host's accept event fires after the
	// popup state has already been torn down.
	AcceptStart int

	// LastDispatch is when the current batch was sent; feeds the
	// adaptive debounce.
	LastDispatch time.Time

	// Incomplete is set when any provider flagged its result partial,
	// meaning further keystrokes schedule continuation queries.
	Incomplete bool

	// Boundary is the effective replacement boundary of the last
	// submitted batch.
	Boundary int

	// Established is the provider boundary trusted for the current
	// incomplete exchange; a provider that later moves it loses to the
	// local word start.
	Established *int

	// generation invalidates in-flight batch callbacks; bumped on every
	// dispatch and every reset.
	generation uint64

	// row is the cursor row at dispatch time, compared on completion to
	// detect stale batches.
	row int

	// batch holds the provider ids of the last dispatched batch.
	// Incomplete continuations re-query exactly these, regardless of
	// their auto-trigger declarations.
	batch []string

	cancel   func()
	timer    editor.Token
	hasTimer bool
}

// NewSession returns a session with no surviving cursor recorded.
func NewSession() *Session {
	return &Session{AcceptStart: -1}
}

// Reset clears everything except the surviving AcceptStart column and
// invalidates any in-flight batch. Outstanding handles must already be
// cancelled by the caller (cancel-then-mutate).
func (s *Session) Reset() {
	s.generation++
	s.LastDispatch = time.Time{}
	s.Incomplete = false
	s.Boundary = 0
	s.Established = nil
	s.row = 0
	s.batch = nil
	s.cancel = nil
	s.hasTimer = false
}

// Teardown is a full reset that also forgets the surviving cursor. Used
// when the surface closes or the last provider is removed.
func (s *Session) Teardown() {
	s.Reset()
	s.AcceptStart = -1
}
