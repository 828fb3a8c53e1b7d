// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
)

// Binder installs host functions into a fresh state for inst.
type Binder interface {
	Bind(L *lua.LState, inst *Instance)
}

// Events is the queue an instance drains.
type Events interface {
	Ready() <-chan struct{}
	Pop() (core.EventRecord, bool)
}

// ErrorHandler receives script failures: load errors and handler errors.
type ErrorHandler func(inst *Instance, err error)

// Info describes the script an instance runs.
type Info struct {
	Ref      core.ScriptRef
	Name     string
	PartName string
	Owner    ulid.ULID
}

// InstanceOption configures an Instance.
type InstanceOption func(*Instance)

// WithBinder sets the host functions bound into each incarnation.
func WithBinder(b Binder) InstanceOption {
	return func(i *Instance) {
		i.binder = b
	}
}

// WithErrorHandler sets where script errors are reported.
func WithErrorHandler(h ErrorHandler) InstanceOption {
	return func(i *Instance) {
		i.onError = h
	}
}

// WithStateFactory overrides the sandbox factory.
func WithStateFactory(f *StateFactory) InstanceOption {
	return func(i *Instance) {
		i.factory = f
	}
}

// Instance runs one script. Each incarnation gets a fresh state; Reset ends
// the current incarnation and starts another from state_entry.
type Instance struct {
	info    Info
	proto   *lua.FunctionProto
	events  Events
	factory *StateFactory
	binder  Binder
	onError ErrorHandler

	mu     sync.Mutex
	cancel context.CancelFunc
	reset  chan struct{}

	// Owned by the run goroutine.
	detected    []core.Value
	incarnation int
}

// NewInstance creates an instance of the compiled script proto fed by events.
func NewInstance(info Info, proto *lua.FunctionProto, events Events, opts ...InstanceOption) *Instance {
	i := &Instance{
		info:    info,
		proto:   proto,
		events:  events,
		factory: NewStateFactory(),
		reset:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Info returns what the instance runs.
func (i *Instance) Info() Info {
	return i.info
}

// Ref returns the script reference.
func (i *Instance) Ref() core.ScriptRef {
	return i.info.Ref
}

// Run executes incarnations until ctx is done.
func (i *Instance) Run(ctx context.Context) {
	select {
	case <-i.reset:
	default:
	}

	for {
		incCtx, cancel := context.WithCancel(ctx)
		i.mu.Lock()
		i.cancel = cancel
		i.mu.Unlock()

		i.incarnation++
		i.runIncarnation(incCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-i.reset:
			slog.Debug("script reset",
				"script", i.info.Ref.String(),
				"name", i.info.Name,
				"incarnation", i.incarnation)
		}
	}
}

// Reset ends the current incarnation. Run starts a new one once the running
// handler has unwound. Reset is safe to call from any goroutine, including
// from inside a handler.
func (i *Instance) Reset() {
	i.Restart()
	i.Interrupt()
}

// Interrupt ends the current incarnation without starting another. Run
// waits for Restart or for its context to end.
func (i *Instance) Interrupt() {
	i.mu.Lock()
	cancel := i.cancel
	i.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Restart asks Run to start a new incarnation once the current one ends.
func (i *Instance) Restart() {
	select {
	case i.reset <- struct{}{}:
	default:
	}
}

func (i *Instance) runIncarnation(ctx context.Context) {
	L, err := i.factory.NewState(ctx)
	if err != nil {
		i.fail(err)
		<-ctx.Done()
		return
	}
	defer L.Close()

	if i.binder != nil {
		i.binder.Bind(L, i)
	}

	L.Push(L.NewFunctionFromProto(i.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() == nil {
			i.fail(oops.In("lua").With("script", i.info.Name).Hint("failed to load script").Wrap(err))
		}
		<-ctx.Done()
		return
	}
	L.SetTop(0)

	i.dispatch(ctx, L, core.NewEvent(i.info.Ref, core.EventStateEntry))

	for {
		select {
		case <-ctx.Done():
			return
		case <-i.events.Ready():
		}
		for ctx.Err() == nil {
			rec, ok := i.events.Pop()
			if !ok {
				break
			}
			i.dispatch(ctx, L, rec)
		}
	}
}

// dispatch runs the handler named after rec, if the script defines one.
func (i *Instance) dispatch(ctx context.Context, L *lua.LState, rec core.EventRecord) {
	fn, ok := L.GetGlobal(rec.Name).(*lua.LFunction)
	if !ok {
		return
	}

	args := i.handlerArgs(L, rec)
	start := time.Now()
	err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	i.detected = nil
	L.SetTop(0)

	handlerDuration.Observe(time.Since(start).Seconds())
	if err != nil && ctx.Err() == nil {
		handlerErrors.Inc()
		i.fail(oops.In("lua").
			With("script", i.info.Name).
			With("event", rec.Name).
			Wrap(err))
		return
	}
	eventsHandled.WithLabelValues(rec.Name).Inc()
}

// Sensor handlers receive only the count; the detections are read back
// through Detected.
func (i *Instance) handlerArgs(L *lua.LState, rec core.EventRecord) []lua.LValue {
	if rec.Name == core.EventSensor && len(rec.Args) == 2 {
		i.detected = rec.Args[1].Items()
		return []lua.LValue{ToLua(L, rec.Args[0])}
	}
	args := make([]lua.LValue, len(rec.Args))
	for n, v := range rec.Args {
		args[n] = ToLua(L, v)
	}
	return args
}

// Detected returns detection n of the sensor event being handled. It must
// only be called from a host function.
func (i *Instance) Detected(n int) (core.Value, bool) {
	if n < 0 || n >= len(i.detected) {
		return core.Value{}, false
	}
	return i.detected[n], true
}

func (i *Instance) fail(err error) {
	if i.onError != nil {
		i.onError(i, err)
		return
	}
	slog.Warn("script error",
		"script", i.info.Ref.String(),
		"name", i.info.Name,
		"error", err)
}

// Sleep pauses the calling script for d, returning early with ctx's error
// when the incarnation ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
