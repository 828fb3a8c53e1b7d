// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package eventq holds the per-script event queues that deferred replies and
// channel matches are posted into.
package eventq

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// Policy decides which event is lost when a queue is full.
type Policy string

// Overflow policies.
const (
	DropNewest Policy = "drop-newest"
	DropOldest Policy = "drop-oldest"
)

// DefaultMaxDepth is the default per-script queue bound.
const DefaultMaxDepth = 64

// Config configures a Hub.
type Config struct {
	MaxDepth int
	Policy   Policy
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return oops.Code(core.CodeInvalidArgument).With("max_depth", c.MaxDepth).Errorf("max depth must not be negative")
	}
	switch c.Policy {
	case "", DropNewest, DropOldest:
		return nil
	default:
		return oops.Code(core.CodeInvalidArgument).With("policy", c.Policy).Errorf("unknown overflow policy %q", c.Policy)
	}
}

// Queue is one script's FIFO of pending events.
type Queue struct {
	ref    core.ScriptRef
	depth  int
	policy Policy

	mu     sync.Mutex
	items  []core.EventRecord
	closed bool
	ready  chan struct{}
}

func newQueue(ref core.ScriptRef, depth int, policy Policy) *Queue {
	return &Queue{
		ref:    ref,
		depth:  depth,
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// Ref returns the script the queue belongs to.
func (q *Queue) Ref() core.ScriptRef {
	return q.ref
}

// Ready is signalled whenever an event is pushed. A single signal may cover
// several events, so consumers drain with Pop until it reports false.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Pop removes the oldest event.
func (q *Queue) Pop() (core.EventRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return core.EventRecord{}, false
	}
	return q.popFront(), true
}

// popFront removes the head and clears its slot. Caller holds mu.
func (q *Queue) popFront() core.EventRecord {
	rec := q.items[0]
	q.items[0] = core.EventRecord{}
	q.items = q.items[1:]
	return rec
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) push(rec core.EventRecord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.depth > 0 && len(q.items) >= q.depth {
		if q.policy != DropOldest {
			eventsDropped.WithLabelValues(rec.Name).Inc()
			slog.Warn("event queue full, dropping event",
				"script", q.ref.String(),
				"event", rec.Name,
				"depth", q.depth)
			return false
		}
		oldest := q.popFront()
		eventsDropped.WithLabelValues(oldest.Name).Inc()
		slog.Warn("event queue full, dropping oldest event",
			"script", q.ref.String(),
			"event", oldest.Name,
			"depth", q.depth)
	}
	q.items = append(q.items, rec)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
}

// Hub routes events to script queues.
type Hub struct {
	cfg Config

	mu     sync.RWMutex
	queues map[core.ScriptRef]*Queue
}

// NewHub creates a hub. A zero MaxDepth means DefaultMaxDepth.
func NewHub(cfg Config) *Hub {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Policy == "" {
		cfg.Policy = DropNewest
	}
	return &Hub{
		cfg:    cfg,
		queues: make(map[core.ScriptRef]*Queue),
	}
}

// Open returns ref's queue, creating it if needed.
func (h *Hub) Open(ref core.ScriptRef) *Queue {
	h.mu.Lock()
	defer h.mu.Unlock()
	if q, ok := h.queues[ref]; ok {
		return q
	}
	q := newQueue(ref, h.cfg.MaxDepth, h.cfg.Policy)
	h.queues[ref] = q
	return q
}

// Queue returns ref's queue if it is open.
func (h *Hub) Queue(ref core.ScriptRef) (*Queue, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	q, ok := h.queues[ref]
	return q, ok
}

// Post appends rec to its target's queue. Posting to a script that has no
// open queue is a no-op and returns false.
func (h *Hub) Post(rec core.EventRecord) bool {
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}

	h.mu.RLock()
	q, ok := h.queues[rec.Target]
	h.mu.RUnlock()
	if !ok {
		eventsUnrouted.Inc()
		slog.Debug("no queue for event target",
			"script", rec.Target.String(),
			"event", rec.Name)
		return false
	}

	if !q.push(rec) {
		return false
	}
	eventsPosted.WithLabelValues(rec.Name).Inc()
	return true
}

// PostEvent builds and posts an event.
func (h *Hub) PostEvent(target core.ScriptRef, name string, args ...core.Value) bool {
	return h.Post(core.NewEvent(target, name, args...))
}

// Reset discards everything queued for ref and returns how many events were
// dropped. The queue stays open.
func (h *Hub) Reset(ref core.ScriptRef) int {
	q, ok := h.Queue(ref)
	if !ok {
		return 0
	}
	return q.clear()
}

// Close removes ref's queue. Later posts to ref are no-ops.
func (h *Hub) Close(ref core.ScriptRef) {
	h.mu.Lock()
	q, ok := h.queues[ref]
	delete(h.queues, ref)
	h.mu.Unlock()
	if ok {
		q.close()
	}
}

// Len returns the number of open queues.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.queues)
}
