package stdio

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	protocol "go.lsp.dev/protocol"

	"popfill/pkg/provider"
)

// fakeChild speaks the child side of the envelope protocol over in-memory
// pipes: it decodes requests and lets the test script responses.
type fakeChild struct {
	dec *msgpack.Decoder
	enc *msgpack.Encoder
}

func newPair(t *testing.T, opts provider.Options) (*Client, *fakeChild) {
	t.Helper()
	childIn, clientOut := io.Pipe()
	clientIn, childOut := io.Pipe()
	c := newClient(opts, clientOut, clientIn)
	t.Cleanup(func() { _ = c.Close() })
	return c, &fakeChild{
		dec: msgpack.NewDecoder(childIn),
		enc: msgpack.NewEncoder(childOut),
	}
}

func (f *fakeChild) recv(t *testing.T) request {
	t.Helper()
	var req request
	require.NoError(t, f.dec.Decode(&req))
	return req
}

func (f *fakeChild) send(t *testing.T, resp response) {
	t.Helper()
	require.NoError(t, f.enc.Encode(&resp))
}

func TestCompleteRoundTrip(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		req := child.recv(t)
		payload, _ := json.Marshal(map[string]any{
			"isIncomplete": true,
			"items":        []map[string]any{{"label": "require"}},
		})
		child.send(t, response{ID: req.ID, Payload: payload})
	}()

	res, err := c.Complete(context.Background(), provider.Params{
		Row: 3, Col: 5, Line: "requi", Kind: provider.TriggerInvoked,
	})
	require.NoError(t, err)
	require.True(t, res.IsIncomplete)
	require.Len(t, res.Items, 1)
	require.Equal(t, "require", res.Items[0].Label)
}

func TestCompleteBareListPayload(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		req := child.recv(t)
		payload, _ := json.Marshal([]map[string]any{{"label": "reduce"}})
		child.send(t, response{ID: req.ID, Payload: payload})
	}()

	res, err := c.Complete(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.False(t, res.IsIncomplete)
	require.Len(t, res.Items, 1)
}

func TestCompleteEmptyPayload(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		req := child.recv(t)
		child.send(t, response{ID: req.ID})
	}()

	res, err := c.Complete(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Empty(t, res.Items)
}

func TestChildErrorSurfaces(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		req := child.recv(t)
		child.send(t, response{ID: req.ID, Error: "no parser for this file"})
	}()

	_, err := c.Complete(context.Background(), provider.Params{})
	require.ErrorContains(t, err, "no parser for this file")
}

func TestOutOfOrderResponses(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		a := child.recv(t)
		b := child.recv(t)
		// Answer the later request first; ids keep callers straight.
		pb, _ := json.Marshal([]map[string]any{{"label": "late"}})
		child.send(t, response{ID: b.ID, Payload: pb})
		pa, _ := json.Marshal([]map[string]any{{"label": "early"}})
		child.send(t, response{ID: a.ID, Payload: pa})
	}()

	type res struct {
		label string
		err   error
	}
	got := make(chan res, 2)
	call := func(col int) {
		r, err := c.Complete(context.Background(), provider.Params{Col: col})
		if err != nil {
			got <- res{err: err}
			return
		}
		got <- res{label: r.Items[0].Label}
	}
	go call(1)
	go call(2)

	labels := map[string]bool{}
	for i := 0; i < 2; i++ {
		r := <-got
		require.NoError(t, r.err)
		labels[r.label] = true
	}
	require.True(t, labels["early"])
	require.True(t, labels["late"])
}

func TestCancelSendsAdvisoryAndReturns(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	cancelSeen := make(chan request, 1)
	go func() {
		_ = child.recv(t)
		// Never answer; the caller's context expires and a cancel
		// envelope follows.
		cancelSeen <- child.recv(t)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, provider.Params{})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case req := <-cancelSeen:
		require.Equal(t, opCancel, req.Op)
	case <-time.After(time.Second):
		t.Fatal("cancel envelope never sent")
	}
}

func TestResolveRoundTrip(t *testing.T) {
	c, child := newPair(t, provider.Options{ResolveProvider: true})
	go func() {
		req := child.recv(t)
		require.Equal(t, opResolve, req.Op)
		var item protocol.CompletionItem
		require.NoError(t, json.Unmarshal(req.Item, &item))
		item.Detail = "fn require(path)"
		payload, _ := json.Marshal(item)
		child.send(t, response{ID: req.ID, Payload: payload})
	}()

	resolved, err := c.Resolve(context.Background(), protocol.CompletionItem{Label: "require"})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, "fn require(path)", resolved.Detail)
}

func TestExecRoundTrip(t *testing.T) {
	c, child := newPair(t, provider.Options{})
	go func() {
		req := child.recv(t)
		require.Equal(t, opExec, req.Op)
		child.send(t, response{ID: req.ID})
	}()

	err := c.Exec(context.Background(), &protocol.Command{Command: "editor.import"})
	require.NoError(t, err)
}

func TestChildExitFailsWaiters(t *testing.T) {
	childIn, clientOut := io.Pipe()
	clientIn, childOut := io.Pipe()
	c := newClient(provider.Options{}, clientOut, clientIn)
	t.Cleanup(func() { _ = c.Close() })
	go func() {
		dec := msgpack.NewDecoder(childIn)
		var req request
		_ = dec.Decode(&req)
		childOut.Close()
	}()

	_, err := c.Complete(context.Background(), provider.Params{})
	require.ErrorContains(t, err, "provider exited")
}
