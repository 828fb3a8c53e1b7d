// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package throttle

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/holomush/simscript/internal/core"
)

// Gate is a per-script token bucket. Unlike Charge, a refused call is
// rejected outright rather than delayed.
type Gate struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[core.ScriptRef]*rate.Limiter
}

// NewGate allows perSecond calls per script with bursts of up to burst.
func NewGate(perSecond float64, burst int) *Gate {
	if burst < 1 {
		burst = 1
	}
	return &Gate{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[core.ScriptRef]*rate.Limiter),
	}
}

// Allow consumes one token for owner if one is available.
func (g *Gate) Allow(owner core.ScriptRef) bool {
	g.mu.Lock()
	lim, ok := g.limiters[owner]
	if !ok {
		lim = rate.NewLimiter(g.limit, g.burst)
		g.limiters[owner] = lim
	}
	g.mu.Unlock()

	if lim.Allow() {
		return true
	}
	gateRejections.Inc()
	return false
}

// Forget drops owner's bucket.
func (g *Gate) Forget(owner core.ScriptRef) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.limiters, owner)
}
