// Package dispatch fans a completion query out to the active providers
// of a surface and collects every outcome, success or error, before
// reporting back. It also keeps the prefix-keyed cache of completed
// batches so narrowing keystrokes can skip a round trip.
package dispatch

import (
	"context"
	"sort"
	"sync"

	"popfill/pkg/provider"
)

// Dispatch sends one completion query per provider and calls done exactly
// once, on its own goroutine, when the last outstanding call resolves.
// A provider that errors does not block the others.
//
// The returned cancel aborts every still-pending call; calling it more
// than once, or after completion, is a no-op. Cancellation is advisory:
// outcomes still arrive (typically as context errors) and it is the
// caller's job to drop results from a superseded batch.
//
// Zero providers produce an immediate empty callback without dispatching.
func Dispatch(parent context.Context, providers map[string]provider.Provider, p provider.Params, done func([]provider.Outcome)) (cancel func()) {
	ctx, stop := context.WithCancel(parent)

	if len(providers) == 0 {
		go func() {
			defer stop()
			done(nil)
		}()
		return stop
	}

	var (
		mu       sync.Mutex
		outcomes = make([]provider.Outcome, 0, len(providers))
		wg       sync.WaitGroup
	)
	for id, pr := range providers {
		wg.Add(1)
		go func(id string, pr provider.Provider) {
			defer wg.Done()
			res, err := pr.Complete(ctx, p)
			mu.Lock()
			outcomes = append(outcomes, provider.Outcome{ProviderID: id, Result: res, Err: err})
			mu.Unlock()
		}(id, pr)
	}

	go func() {
		wg.Wait()
		stop()
		// Deterministic merge order regardless of arrival order.
		sort.Slice(outcomes, func(i, j int) bool {
			return outcomes[i].ProviderID < outcomes[j].ProviderID
		})
		done(outcomes)
	}()

	return stop
}
