// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dispatch runs deferred operations on a bounded pool of goroutines
// and hands their results back to the request registry.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/registry"
)

var tracer = otel.Tracer("simscript/dispatch")

// Defaults.
const (
	DefaultTimeout = 30 * time.Second
)

// Resolver receives finished results. *registry.Registry satisfies it.
type Resolver interface {
	Has(token core.Token) bool
	Resolve(token core.Token, result registry.Result) bool
}

// Config configures a Dispatcher.
type Config struct {
	// Workers bounds how many operations execute at once.
	// Defaults to 4 * GOMAXPROCS.
	Workers int
	// Timeout bounds one operation. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Dispatcher executes operations off the caller's goroutine.
type Dispatcher struct {
	resolver Resolver
	timeout  time.Duration
	slots    sizedwaitgroup.SizedWaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates a dispatcher that resolves through resolver.
func New(resolver Resolver, cfg Config) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4 * runtime.GOMAXPROCS(0)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		resolver: resolver,
		timeout:  timeout,
		slots:    sizedwaitgroup.New(workers),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch schedules op for token and returns at once. Cancelling ctx
// cancels the operation; the trace span of ctx becomes the parent of the
// operation's span.
func (d *Dispatcher) Dispatch(ctx context.Context, token core.Token, op registry.Operation) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return oops.Code(core.CodeShuttingDown).
			With("operation", op.Name()).
			Errorf("dispatcher is closed")
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	runCtx, cancel := context.WithCancel(d.ctx)
	runCtx = trace.ContextWithSpanContext(runCtx, trace.SpanContextFromContext(ctx))
	stop := context.AfterFunc(ctx, cancel)

	go func() {
		defer d.inflight.Done()
		defer cancel()
		defer stop()

		if err := d.slots.AddWithContext(runCtx); err != nil {
			recordOutcome(op.Name(), statusCancelled)
			return
		}
		defer d.slots.Done()

		d.run(runCtx, token, op)
	}()
	return nil
}

// Close stops accepting work, cancels what is running and waits for every
// dispatched goroutine to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.inflight.Wait()
}

func (d *Dispatcher) run(ctx context.Context, token core.Token, op registry.Operation) {
	name := op.Name()
	if !d.resolver.Has(token) {
		// Owner was reset or removed before a worker picked this up.
		recordOutcome(name, statusSkipped)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "dispatch."+name,
		trace.WithAttributes(
			attribute.String("operation", name),
			attribute.String("token", token.String()),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := execute(ctx, token, op)
	dispatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	status := statusOK
	if err != nil {
		status = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logFailure(name, token, status, err)
		result = registry.SafeFallback(op, token, err)
	}
	recordOutcome(name, status)

	d.resolver.Resolve(token, result)
}

// execute runs op and turns a panic into an error.
func execute(ctx context.Context, token core.Token, op registry.Operation) (result registry.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(core.CodeOperationPanic).
				With("operation", op.Name()).
				With("stack", stack()).
				Errorf("operation panicked: %v", r)
		}
	}()
	return op.Execute(ctx, token)
}

func stack() string {
	buf := make([]byte, 4096)
	return string(buf[:runtime.Stack(buf, false)])
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return statusTimeout
	case errors.Is(err, context.Canceled):
		return statusCancelled
	}
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == core.CodeOperationPanic {
		return statusPanic
	}
	return statusError
}

func logFailure(name string, token core.Token, status string, err error) {
	switch status {
	case statusTimeout:
		slog.Warn("deferred operation timed out",
			"operation", name,
			"token", token.String())
	case statusCancelled:
		slog.Debug("deferred operation canceled",
			"operation", name,
			"token", token.String())
	case statusPanic:
		slog.Error("deferred operation panicked",
			"operation", name,
			"token", token.String(),
			"error", err)
	default:
		slog.Warn("deferred operation failed",
			"operation", name,
			"token", token.String(),
			"error", err)
	}
}
