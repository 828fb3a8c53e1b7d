// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package registry tracks deferred requests between the moment a script
// issues them and the moment their single reply is delivered.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// Result is what a finished operation hands back to its script. An empty
// Event means the operation is fire-and-forget and nothing is delivered.
type Result struct {
	Event string
	Args  []core.Value
}

// Silent reports whether the result produces no event.
func (r Result) Silent() bool {
	return r.Event == ""
}

// Operation is the deferred work behind a request token.
type Operation interface {
	// Name identifies the operation in logs and metrics.
	Name() string
	// Execute performs the work. It runs off the script's goroutine.
	Execute(ctx context.Context, token core.Token) (Result, error)
	// Fallback is the reply used when Execute fails or panics.
	Fallback(token core.Token, err error) Result
}

// SafeFallback returns op's fallback for err. A panicking Fallback is logged
// and yields the silent result.
func SafeFallback(op Operation, token core.Token, err error) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("operation fallback panicked",
				"operation", op.Name(),
				"token", token.String(),
				"cause", err,
				"panic", r)
			res = Result{}
		}
	}()
	return op.Fallback(token, err)
}

// Poster accepts finished events for delivery. Post must not block.
type Poster interface {
	Post(rec core.EventRecord) bool
}

// Pending is one outstanding request.
type Pending struct {
	Token     core.Token
	Owner     core.ScriptRef
	Op        Operation
	CreatedAt time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry maps live tokens to their owner and operation.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	pending map[core.Token]Pending
	byOwner map[core.ScriptRef]map[core.Token]struct{}
	poster  Poster
	now     func() time.Time
}

// New creates a registry that delivers results through poster.
func New(poster Poster, opts ...Option) *Registry {
	r := &Registry{
		pending: make(map[core.Token]Pending),
		byOwner: make(map[core.ScriptRef]map[core.Token]struct{}),
		poster:  poster,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores op for owner and returns its fresh token.
func (r *Registry) Register(owner core.ScriptRef, op Operation) core.Token {
	token := core.NewToken()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[token] = Pending{
		Token:     token,
		Owner:     owner,
		Op:        op,
		CreatedAt: r.now(),
	}
	tokens, ok := r.byOwner[owner]
	if !ok {
		tokens = make(map[core.Token]struct{})
		r.byOwner[owner] = tokens
	}
	tokens[token] = struct{}{}

	requestsRegistered.WithLabelValues(op.Name()).Inc()
	pendingRequests.Inc()
	return token
}

// Lookup returns the pending request for token.
func (r *Registry) Lookup(token core.Token) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[token]
	return p, ok
}

// Has reports whether token is still outstanding.
func (r *Registry) Has(token core.Token) bool {
	_, ok := r.Lookup(token)
	return ok
}

// Resolve delivers result for token and forgets it. Only the first call for a
// token delivers anything; later calls, and calls for cancelled tokens, return
// false and do nothing.
func (r *Registry) Resolve(token core.Token, result Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.take(token)
	if !ok {
		requestsOrphaned.Inc()
		slog.Debug("dropping reply for unknown request", "token", token.String())
		return false
	}

	r.deliver(p, result, outcomeResolved)
	return true
}

// CancelAllFor drops every request owned by owner without delivering
// anything. It returns how many were dropped.
func (r *Registry) CancelAllFor(owner core.ScriptRef) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens := r.byOwner[owner]
	for token := range tokens {
		if p, ok := r.pending[token]; ok {
			delete(r.pending, token)
			requestsCompleted.WithLabelValues(p.Op.Name(), outcomeCancelled).Inc()
		}
	}
	delete(r.byOwner, owner)

	pendingRequests.Sub(float64(len(tokens)))
	return len(tokens)
}

// Expire resolves every request older than maxAge with its operation's
// fallback result and returns how many expired.
func (r *Registry) Expire(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	var expired []core.Token
	for token, p := range r.pending {
		if p.CreatedAt.Before(cutoff) {
			expired = append(expired, token)
		}
	}

	for _, token := range expired {
		p, _ := r.take(token)
		err := oops.Code(core.CodeRequestExpired).
			With("token", token.String()).
			With("operation", p.Op.Name()).
			Errorf("request expired after %s", maxAge)
		slog.Warn("request expired without a reply",
			"token", token.String(),
			"operation", p.Op.Name(),
			"script", p.Owner.String(),
			"age", r.now().Sub(p.CreatedAt))
		r.deliver(p, SafeFallback(p.Op, token, err), outcomeExpired)
	}
	return len(expired)
}

// Len returns the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// PendingFor returns how many requests owner has outstanding.
func (r *Registry) PendingFor(owner core.ScriptRef) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byOwner[owner])
}

// take removes token from both indexes. Caller holds mu.
func (r *Registry) take(token core.Token) (Pending, bool) {
	p, ok := r.pending[token]
	if !ok {
		return Pending{}, false
	}
	delete(r.pending, token)
	if tokens := r.byOwner[p.Owner]; tokens != nil {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(r.byOwner, p.Owner)
		}
	}
	pendingRequests.Dec()
	return p, true
}

// deliver posts result to p's owner. Caller holds mu, so a concurrent
// CancelAllFor either runs before the entry is taken or after the post.
func (r *Registry) deliver(p Pending, result Result, outcome string) {
	if result.Silent() {
		requestsCompleted.WithLabelValues(p.Op.Name(), outcomeSilent).Inc()
		return
	}
	rec := core.NewEvent(p.Owner, result.Event, result.Args...)
	rec.Token = p.Token
	rec.PostedAt = r.now()
	if !r.poster.Post(rec) {
		slog.Debug("reply not accepted by event queue",
			"token", p.Token.String(),
			"script", p.Owner.String(),
			"event", result.Event)
	}
	requestsCompleted.WithLabelValues(p.Op.Name(), outcome).Inc()
}
