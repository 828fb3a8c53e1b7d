// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/registry"
	"github.com/holomush/simscript/pkg/errutil"
)

type collector struct {
	mu      sync.Mutex
	records []core.EventRecord
	posted  chan struct{}
}

func newCollector() *collector {
	return &collector{posted: make(chan struct{}, 100)}
}

func (c *collector) Post(rec core.EventRecord) bool {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	c.posted <- struct{}{}
	return true
}

func (c *collector) wait(t *testing.T) core.EventRecord {
	t.Helper()
	select {
	case <-c.posted:
	case <-time.After(2 * time.Second):
		t.Fatal("no event posted")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[len(c.records)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type funcOp struct {
	name    string
	execute func(ctx context.Context, token core.Token) (registry.Result, error)
	calls   atomic.Int32
}

func (o *funcOp) Name() string { return o.name }

func (o *funcOp) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	o.calls.Add(1)
	return o.execute(ctx, token)
}

func (o *funcOp) Fallback(token core.Token, _ error) registry.Result {
	if o.name == "email" {
		return registry.Result{}
	}
	return reply(token, "0")
}

func reply(token core.Token, data string) registry.Result {
	return registry.Result{
		Event: core.EventDataserver,
		Args:  []core.Value{core.Key(token.Key()), core.String(data)},
	}
}

func setup(t *testing.T, cfg Config) (*Dispatcher, *registry.Registry, *collector) {
	t.Helper()
	sink := newCollector()
	reg := registry.New(sink)
	d := New(reg, cfg)
	t.Cleanup(d.Close)
	return d, reg, sink
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, reg, sink := setup(t, Config{})
	release := make(chan struct{})
	op := &funcOp{name: "agent_data", execute: func(_ context.Context, token core.Token) (registry.Result, error) {
		<-release
		return reply(token, "1"), nil
	}}

	owner := core.NewScriptRef(core.NewULID())
	token := reg.Register(owner, op)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, d.Dispatch(context.Background(), token, op))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the operation")
	}

	assert.Zero(t, sink.count())
	close(release)

	rec := sink.wait(t)
	assert.Equal(t, owner, rec.Target)
	assert.Equal(t, "1", rec.Args[1].String())
	d.Close()
}

func TestDispatcher_ErrorUsesFallback(t *testing.T) {
	d, reg, sink := setup(t, Config{})
	op := &funcOp{name: "agent_data", execute: func(context.Context, core.Token) (registry.Result, error) {
		return registry.Result{}, errors.New("directory offline")
	}}
	token := reg.Register(core.NewScriptRef(core.NewULID()), op)

	require.NoError(t, d.Dispatch(context.Background(), token, op))

	rec := sink.wait(t)
	assert.Equal(t, core.EventDataserver, rec.Name)
	assert.Equal(t, "0", rec.Args[1].String())
	assert.False(t, reg.Has(token))
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	d, reg, sink := setup(t, Config{Workers: 1})
	bad := &funcOp{name: "agent_data", execute: func(context.Context, core.Token) (registry.Result, error) {
		panic("boom")
	}}
	good := &funcOp{name: "agent_data", execute: func(_ context.Context, token core.Token) (registry.Result, error) {
		return reply(token, "1"), nil
	}}
	owner := core.NewScriptRef(core.NewULID())

	badToken := reg.Register(owner, bad)
	require.NoError(t, d.Dispatch(context.Background(), badToken, bad))
	rec := sink.wait(t)
	assert.Equal(t, "0", rec.Args[1].String())

	goodToken := reg.Register(owner, good)
	require.NoError(t, d.Dispatch(context.Background(), goodToken, good))
	rec = sink.wait(t)
	assert.Equal(t, "1", rec.Args[1].String())
}

type panickingFallbackOp struct{}

func (panickingFallbackOp) Name() string { return "agent_data" }

func (panickingFallbackOp) Execute(context.Context, core.Token) (registry.Result, error) {
	return registry.Result{}, errors.New("directory offline")
}

func (panickingFallbackOp) Fallback(core.Token, error) registry.Result {
	panic("fallback failed")
}

func TestDispatcher_PanickingFallbackIsContained(t *testing.T) {
	d, reg, sink := setup(t, Config{Workers: 1})
	owner := core.NewScriptRef(core.NewULID())

	var bad panickingFallbackOp
	badToken := reg.Register(owner, bad)
	require.NoError(t, d.Dispatch(context.Background(), badToken, bad))
	assert.Eventually(t, func() bool { return !reg.Has(badToken) }, 2*time.Second, 5*time.Millisecond)

	good := &funcOp{name: "agent_data", execute: func(_ context.Context, token core.Token) (registry.Result, error) {
		return reply(token, "1"), nil
	}}
	goodToken := reg.Register(owner, good)
	require.NoError(t, d.Dispatch(context.Background(), goodToken, good))
	rec := sink.wait(t)
	assert.Equal(t, "1", rec.Args[1].String())
	assert.Equal(t, 1, sink.count())
}

func TestDispatcher_SilentFallbackPostsNothing(t *testing.T) {
	d, reg, sink := setup(t, Config{})
	finished := make(chan struct{})
	op := &funcOp{name: "email", execute: func(context.Context, core.Token) (registry.Result, error) {
		defer close(finished)
		return registry.Result{}, errors.New("smtp refused")
	}}
	token := reg.Register(core.NewScriptRef(core.NewULID()), op)

	require.NoError(t, d.Dispatch(context.Background(), token, op))
	<-finished
	d.Close()

	assert.Zero(t, sink.count())
	assert.False(t, reg.Has(token))
}

func TestDispatcher_SkipsCancelledRequests(t *testing.T) {
	d, reg, sink := setup(t, Config{Workers: 1})
	owner := core.NewScriptRef(core.NewULID())

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &funcOp{name: "agent_data", execute: func(_ context.Context, token core.Token) (registry.Result, error) {
		close(started)
		<-release
		return reply(token, "1"), nil
	}}
	other := core.NewScriptRef(core.NewULID())
	blockerToken := reg.Register(other, blocker)
	require.NoError(t, d.Dispatch(context.Background(), blockerToken, blocker))
	<-started

	queued := &funcOp{name: "agent_data", execute: func(_ context.Context, token core.Token) (registry.Result, error) {
		return reply(token, "1"), nil
	}}
	token := reg.Register(owner, queued)
	require.NoError(t, d.Dispatch(context.Background(), token, queued))

	assert.Equal(t, 1, reg.CancelAllFor(owner))
	close(release)
	sink.wait(t)
	d.Close()

	assert.Zero(t, queued.calls.Load())
	assert.Equal(t, 1, sink.count())
}

func TestDispatcher_Timeout(t *testing.T) {
	d, reg, sink := setup(t, Config{Timeout: 20 * time.Millisecond})
	op := &funcOp{name: "agent_data", execute: func(ctx context.Context, _ core.Token) (registry.Result, error) {
		<-ctx.Done()
		return registry.Result{}, ctx.Err()
	}}
	token := reg.Register(core.NewScriptRef(core.NewULID()), op)

	require.NoError(t, d.Dispatch(context.Background(), token, op))

	rec := sink.wait(t)
	assert.Equal(t, "0", rec.Args[1].String())
}

func TestDispatcher_CallerCancellation(t *testing.T) {
	d, reg, sink := setup(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	running := make(chan struct{})
	op := &funcOp{name: "agent_data", execute: func(ctx context.Context, _ core.Token) (registry.Result, error) {
		close(running)
		<-ctx.Done()
		return registry.Result{}, ctx.Err()
	}}
	token := reg.Register(core.NewScriptRef(core.NewULID()), op)

	require.NoError(t, d.Dispatch(ctx, token, op))
	<-running
	cancel()

	rec := sink.wait(t)
	assert.Equal(t, "0", rec.Args[1].String())
}

func TestDispatcher_CloseRejectsNewWork(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newCollector()
	reg := registry.New(sink)
	d := New(reg, Config{})

	var wg sync.WaitGroup
	for range 20 {
		op := &funcOp{name: "agent_data", execute: func(ctx context.Context, token core.Token) (registry.Result, error) {
			select {
			case <-ctx.Done():
				return registry.Result{}, ctx.Err()
			case <-time.After(time.Millisecond):
				return reply(token, "1"), nil
			}
		}}
		token := reg.Register(core.NewScriptRef(core.NewULID()), op)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), token, op)
		}()
	}
	wg.Wait()
	d.Close()
	d.Close()

	op := &funcOp{name: "agent_data"}
	err := d.Dispatch(context.Background(), core.NewToken(), op)
	errutil.AssertErrorCode(t, err, core.CodeShuttingDown)
	assert.Zero(t, op.calls.Load())
}
