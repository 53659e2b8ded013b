package complete

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	protocol "go.lsp.dev/protocol"

	"popfill/internal/logger"
	"popfill/internal/textutil"
	"popfill/pkg/candidate"
	"popfill/pkg/config"
	"popfill/pkg/dispatch"
	"popfill/pkg/editor"
	"popfill/pkg/latency"
	"popfill/pkg/provider"
)

// registration is the per-surface provider set, created when the first
// provider is enabled for a buffer and destroyed with the last one.
type registration struct {
	buf       editor.Buffer
	providers map[string]provider.Provider
	// triggers maps a declared trigger character to the provider ids
	// interested in it.
	triggers map[string]map[string]struct{}
}

// Engine owns the trigger state machine: it watches keystrokes, debounces
// adaptively on the observed provider latency, fans requests out through
// the dispatcher and submits reconciled candidates to the host popup.
// All entry points and callbacks serialize on one lock.
type Engine struct {
	mu      sync.Mutex
	cfg     *config.Config
	matcher candidate.Matcher
	est     *latency.Estimator
	sched   editor.Scheduler
	popup   editor.Popup
	cache   *dispatch.Cache
	session *Session
	logger  *log.Logger

	regs  map[string]*registration
	shown bool
}

// NewEngine wires the orchestration core together. The scheduler and
// popup are host capabilities; everything else is internal.
func NewEngine(cfg *config.Config, sched editor.Scheduler, popup editor.Popup) *Engine {
	return &Engine{
		cfg:     cfg,
		matcher: candidate.NewMatcher(cfg.Match.Mode),
		est:     latency.NewEstimator(cfg.Timing.EMAWindow, cfg.Timing.WarmupSamples),
		sched:   sched,
		popup:   popup,
		cache:   dispatch.NewCache(),
		session: NewSession(),
		logger:  logger.New("complete"),
		regs:    make(map[string]*registration),
	}
}

// Enable registers a provider for a surface, creating the surface
// registration on first use. Re-enabling an id replaces the previous
// provider and its trigger characters.
func (e *Engine) Enable(id string, buf editor.Buffer, pr provider.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg := e.regs[buf.ID()]
	if reg == nil {
		reg = &registration{
			buf:       buf,
			providers: make(map[string]provider.Provider),
			triggers:  make(map[string]map[string]struct{}),
		}
		e.regs[buf.ID()] = reg
	}
	if _, ok := reg.providers[id]; ok {
		e.dropTriggers(reg, id)
	}
	reg.providers[id] = pr
	for _, ch := range pr.Options().TriggerCharacters {
		set := reg.triggers[ch]
		if set == nil {
			set = make(map[string]struct{})
			reg.triggers[ch] = set
		}
		set[id] = struct{}{}
	}
	e.cache.Invalidate()
}

// Disable removes a provider from a surface. Removing the last provider
// tears the surface registration and session state down.
func (e *Engine) Disable(id, surfaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg := e.regs[surfaceID]
	if reg == nil {
		return
	}
	if _, ok := reg.providers[id]; !ok {
		return
	}
	delete(reg.providers, id)
	e.dropTriggers(reg, id)
	e.cache.Invalidate()
	if len(reg.providers) == 0 {
		delete(e.regs, surfaceID)
		e.cancelPendingLocked()
		e.session.Teardown()
		e.closePopupLocked()
	}
}

func (e *Engine) dropTriggers(reg *registration, id string) {
	for ch, set := range reg.triggers {
		delete(set, id)
		if len(set) == 0 {
			delete(reg.triggers, ch)
		}
	}
}

// Invoke is a manual completion request: any pending timer is discarded
// and the batch dispatches immediately against every registered provider.
func (e *Engine) Invoke(surfaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.regs[surfaceID] == nil {
		return
	}
	e.cancelTimerLocked()
	e.fireLocked(surfaceID, provider.TriggerInvoked, "", true)
}

// OnChar feeds one typed character into the trigger machinery. Trigger
// characters schedule a short fixed settle delay; ordinary word
// characters schedule the adaptive debounce; anything else is ignored.
func (e *Engine) OnChar(surfaceID string, ch rune) {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg := e.regs[surfaceID]
	if reg == nil {
		return
	}
	s := string(ch)
	if set := reg.triggers[s]; len(set) > 0 {
		settle := time.Duration(e.cfg.Timing.SettleDelayMs) * time.Millisecond
		e.scheduleLocked(surfaceID, settle, provider.TriggerCharacter, s)
		return
	}
	if !textutil.IsWordChar(ch) {
		return
	}
	if e.shown && !e.session.Incomplete {
		// A complete batch is showing; the host narrows it locally and
		// re-querying would only churn the popup.
		return
	}
	kind := provider.TriggerInvoked
	if e.shown && e.session.Incomplete {
		kind = provider.TriggerIncomplete
	} else if !e.anyAutoTrigger(reg) {
		return
	}
	delay := e.est.Debounce(time.Since(e.session.LastDispatch))
	e.scheduleLocked(surfaceID, delay, kind, "")
}

// LeaveInsert handles the surface leaving insertion state: pending and
// in-flight work is cancelled and the context reset, keeping only the
// surviving acceptance cursor.
func (e *Engine) LeaveInsert(surfaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.regs[surfaceID] == nil {
		return
	}
	e.cancelPendingLocked()
	e.session.Reset()
	e.cache.Invalidate()
	e.closePopupLocked()
}

func (e *Engine) anyAutoTrigger(reg *registration) bool {
	for _, pr := range reg.providers {
		if pr.Options().AutoTrigger {
			return true
		}
	}
	return false
}

// scheduleLocked arms the dispatch timer, replacing any pending one. A
// zero delay still goes through the scheduler so dispatch never happens
// reentrantly under the keystroke event.
func (e *Engine) scheduleLocked(surfaceID string, delay time.Duration, kind provider.TriggerKind, char string) {
	e.cancelTimerLocked()
	if delay < 0 {
		delay = 0
	}
	e.session.timer = e.sched.After(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.session.hasTimer = false
		e.fireLocked(surfaceID, kind, char, false)
	})
	e.session.hasTimer = true
}

// fireLocked dispatches one batch. The previous in-flight batch is
// cancelled first; a fresh cache hit short-circuits the fan-out entirely.
func (e *Engine) fireLocked(surfaceID string, kind provider.TriggerKind, char string, manual bool) {
	reg := e.regs[surfaceID]
	if reg == nil {
		return
	}
	e.cancelBatchLocked()
	buf := reg.buf
	if !buf.InsertMode() {
		return
	}
	row, col := buf.Cursor()
	line := buf.Line(row)
	local := textutil.WordStart(line, col)

	if kind != provider.TriggerIncomplete {
		prefix := sliceLine(line, local, col)
		if cands, ok := e.cache.Get(row, local, prefix, e.matcher); ok {
			e.logger.Debugf("served %d candidates from cache at %d:%d", len(cands), row, local)
			e.session.Boundary = local
			e.session.AcceptStart = local
			e.session.Incomplete = false
			e.session.Established = nil
			e.submitLocked(reg, local, cands)
			return
		}
	}

	set := e.selectProviders(reg, kind, char, manual)
	if len(set) == 0 {
		return
	}
	e.session.generation++
	gen := e.session.generation
	started := time.Now()
	e.session.LastDispatch = started
	e.session.row = row
	e.session.batch = batchIDs(set)

	params := provider.Params{Row: row, Col: col, Line: line, Kind: kind, Char: char}
	e.session.cancel = dispatch.Dispatch(context.Background(), set, params, func(out []provider.Outcome) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.onBatchLocked(surfaceID, gen, started, out)
	})
}

func (e *Engine) selectProviders(reg *registration, kind provider.TriggerKind, char string, manual bool) map[string]provider.Provider {
	set := make(map[string]provider.Provider)
	switch {
	case kind == provider.TriggerCharacter:
		for id := range reg.triggers[char] {
			set[id] = reg.providers[id]
		}
	case kind == provider.TriggerIncomplete:
		// Continuations go back to the batch that reported incomplete,
		// whatever trigger produced it.
		for _, id := range e.session.batch {
			if pr, ok := reg.providers[id]; ok {
				set[id] = pr
			}
		}
	case manual:
		for id, pr := range reg.providers {
			set[id] = pr
		}
	default:
		for id, pr := range reg.providers {
			if pr.Options().AutoTrigger {
				set[id] = pr
			}
		}
	}
	return set
}

// onBatchLocked is the dispatch callback: it drops superseded or stale
// batches, reconciles the boundary, normalizes and merges per-provider
// results and submits the popup entries.
func (e *Engine) onBatchLocked(surfaceID string, gen uint64, started time.Time, out []provider.Outcome) {
	if gen != e.session.generation {
		// Superseded batches that genuinely completed still carry a
		// latency signal; cancelled ones only measure cancel latency.
		if !cancelledBatch(out) {
			e.est.Observe(time.Since(started))
		}
		return
	}
	e.est.Observe(time.Since(started))
	e.session.cancel = nil
	reg := e.regs[surfaceID]
	if reg == nil {
		return
	}
	buf := reg.buf
	row, col := buf.Cursor()
	if row != e.session.row || !buf.InsertMode() {
		e.logger.Debugf("dropping stale batch for %s", surfaceID)
		return
	}
	line := buf.Line(row)
	local := textutil.WordStart(line, col)

	var all []protocol.CompletionItem
	incomplete := false
	for i := range out {
		o := &out[i]
		if o.Err != nil {
			e.logger.Errorf("completion provider %s: %v", o.ProviderID, o.Err)
			continue
		}
		if o.Result == nil {
			continue
		}
		if o.Result.IsIncomplete {
			incomplete = true
		}
		all = append(all, o.Result.Items...)
	}

	pcol, pok := candidate.ProviderBoundary(all, row)
	boundary := candidate.Reconcile(local, pcol, pok, e.session.Established)
	if boundary > col {
		boundary = local
	}
	// The established boundary is scoped to one incomplete sequence: a
	// complete batch ends the exchange, so the next one starts trusting
	// a consistent provider boundary again.
	if incomplete {
		if pok && boundary == pcol && e.session.Established == nil {
			est := pcol
			e.session.Established = &est
		}
	} else {
		e.session.Established = nil
	}
	prefix := sliceLine(line, boundary, col)

	var merged []candidate.Candidate
	for i := range out {
		o := &out[i]
		if o.Err != nil || o.Result == nil {
			continue
		}
		merged = append(merged, candidate.Normalize(o.Result, prefix, o.ProviderID, e.matcher)...)
	}
	if e.cfg.Popup.Dedupe {
		merged = dedupe(merged)
	}
	if limit := e.cfg.Popup.MaxCandidates; limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	e.session.Incomplete = incomplete
	e.session.Boundary = boundary
	e.session.AcceptStart = boundary
	if incomplete {
		e.cache.Invalidate()
	} else {
		e.cache.Put(row, boundary, prefix, merged)
	}
	e.submitLocked(reg, boundary, merged)
}

// dedupe keeps the first of identical word/kind pairs; provider order is
// already stable (sorted by provider id), so first-wins is deterministic.
func dedupe(cands []candidate.Candidate) []candidate.Candidate {
	seen := make(map[string]struct{}, len(cands))
	kept := cands[:0]
	for _, c := range cands {
		key := c.Word + "\x00" + c.Kind
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}

// submitLocked builds popup entries, runs per-provider convert hooks and
// shows the menu at the boundary column.
func (e *Engine) submitLocked(reg *registration, boundary int, cands []candidate.Candidate) {
	entries := make([]editor.Entry, 0, len(cands))
	for i := range cands {
		c := &cands[i]
		entry := editor.Entry{
			Word:       c.Word,
			Abbr:       c.Abbr,
			Kind:       c.Kind,
			Menu:       c.Menu,
			Info:       c.Info,
			Deprecated: c.Deprecated,
		}
		if pr, ok := reg.providers[c.ProviderID]; ok {
			if conv := pr.Options().Convert; conv != nil {
				entry = conv(c.Item, entry)
			}
		}
		// Pipeline fields always win over convert output.
		entry.Word = c.Word
		entry.Meta = editor.Meta{ProviderID: c.ProviderID, Item: &c.Item}
		entries = append(entries, entry)
	}
	e.popup.Show(boundary, entries)
	e.shown = len(entries) > 0
}

// cancelPendingLocked stops both the debounce timer and any in-flight
// batch, in that order.
func (e *Engine) cancelPendingLocked() {
	e.cancelTimerLocked()
	e.cancelBatchLocked()
}

// cancelBatchLocked aborts the in-flight batch and invalidates its
// callback generation, so a cancelled batch can never reach the popup
// even when no new dispatch follows.
func (e *Engine) cancelBatchLocked() {
	if e.session.cancel == nil {
		return
	}
	e.session.cancel()
	e.session.cancel = nil
	e.session.generation++
}

// cancelledBatch reports whether every outcome is a context cancellation,
// meaning the batch carries no provider latency signal. Timeouts are real
// provider behavior and do not count.
func cancelledBatch(out []provider.Outcome) bool {
	if len(out) == 0 {
		return true
	}
	for i := range out {
		if out[i].Err == nil || !errors.Is(out[i].Err, context.Canceled) {
			return false
		}
	}
	return true
}

func batchIDs(set map[string]provider.Provider) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) cancelTimerLocked() {
	if e.session.hasTimer {
		e.sched.Cancel(e.session.timer)
		e.session.hasTimer = false
	}
}

func (e *Engine) closePopupLocked() {
	if e.shown {
		e.popup.Show(0, nil)
		e.shown = false
	}
}

func sliceLine(line string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(line) {
		to = len(line)
	}
	if from > to {
		from = to
	}
	return line[from:to]
}
