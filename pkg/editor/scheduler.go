package editor

import (
	"sync"
	"time"
)

// Token identifies a scheduled callback.
type Token uint64

// Scheduler is the injected timer capability. Starting a new timer for a
// concern always cancels the previous one first; the pipeline never holds
// two live timers for the same surface.
type Scheduler interface {
	After(d time.Duration, fn func()) Token
	Cancel(tok Token)
}

// TimeScheduler runs callbacks on real timers via time.AfterFunc.
type TimeScheduler struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewTimeScheduler returns a Scheduler backed by the runtime clock.
func NewTimeScheduler() *TimeScheduler {
	return &TimeScheduler{timers: make(map[Token]*time.Timer)}
}

// After schedules fn after d and returns its cancellation token.
func (s *TimeScheduler) After(d time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	tok := s.next
	s.timers[tok] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, tok)
		s.mu.Unlock()
		fn()
	})
	return tok
}

// Cancel stops a pending callback. Cancelling an already fired or unknown
// token is a no-op.
func (s *TimeScheduler) Cancel(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[tok]; ok {
		t.Stop()
		delete(s.timers, tok)
	}
}
