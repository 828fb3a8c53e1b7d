// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package throttle decides how long a script must pause after issuing
// rate-limited calls.
package throttle

import (
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// Category groups calls that share a counter.
type Category string

// Call categories. Each has its own counter per script.
const (
	Chat       Category = "chat"
	Email      Category = "email"
	AgentData  Category = "agent_data"
	RemoteData Category = "remote_data"
)

// Default cleanup values.
const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultMaxAge          = time.Hour
)

// Rule is the throttle policy for one category. The first Threshold calls
// inside a Window are free; every later call in the same window costs Delay.
// A zero Threshold makes every call cost Delay.
type Rule struct {
	Threshold int
	Window    time.Duration
	Delay     time.Duration
}

// DefaultRules returns the stock rules.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		Chat:       {Threshold: 10, Window: 5 * time.Second, Delay: 2 * time.Second},
		Email:      {Threshold: 0, Window: time.Second, Delay: 20 * time.Second},
		AgentData:  {Threshold: 0, Window: time.Second, Delay: 100 * time.Millisecond},
		RemoteData: {Threshold: 0, Window: time.Second, Delay: 3 * time.Second},
	}
}

// Config configures a Controller.
type Config struct {
	// Rules replaces the default rule for each category it names.
	Rules map[Category]Rule

	// CleanupInterval is how often idle windows are discarded.
	// Defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration

	// MaxAge is how long an idle window is kept. Defaults to DefaultMaxAge.
	MaxAge time.Duration
}

// Validate checks every rule.
func (c Config) Validate() error {
	for cat, rule := range c.Rules {
		if rule.Threshold < 0 || rule.Window < 0 || rule.Delay < 0 {
			return oops.Code(core.CodeInvalidArgument).
				With("category", string(cat)).
				Errorf("throttle rule for %s must not be negative", cat)
		}
	}
	return nil
}

type key struct {
	owner    core.ScriptRef
	category Category
}

type window struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller tracks per-script call windows. It is safe for concurrent use.
//
// The Controller runs a background goroutine that discards idle windows.
// Call Close to stop it.
type Controller struct {
	mu      sync.Mutex
	rules   map[Category]Rule
	windows map[key]*window
	maxAge  time.Duration
	now     func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a controller and starts its cleanup goroutine.
func New(cfg Config, opts ...Option) *Controller {
	rules := DefaultRules()
	for cat, rule := range cfg.Rules {
		rules[cat] = rule
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	c := &Controller{
		rules:    rules,
		windows:  make(map[key]*window),
		maxAge:   maxAge,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.cleanupLoop(interval)
	return c
}

// Rule returns the rule in force for category.
func (c *Controller) Rule(category Category) (Rule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rule, ok := c.rules[category]
	return rule, ok
}

// Charge records one call by owner in category and returns how long owner
// must pause before continuing. Unknown categories are never throttled.
func (c *Controller) Charge(owner core.ScriptRef, category Category) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule, ok := c.rules[category]
	if !ok {
		return 0
	}

	now := c.now()
	k := key{owner: owner, category: category}
	w, exists := c.windows[k]
	if !exists || now.Sub(w.start) >= rule.Window {
		w = &window{start: now}
		c.windows[k] = w
	}
	w.count++
	w.lastSeen = now
	trackedWindows.Set(float64(len(c.windows)))

	if w.count <= rule.Threshold {
		return 0
	}
	throttledCalls.WithLabelValues(string(category)).Inc()
	return rule.Delay
}

// Forget drops every window owned by owner.
func (c *Controller) Forget(owner core.ScriptRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.windows {
		if k.owner == owner {
			delete(c.windows, k)
		}
	}
	trackedWindows.Set(float64(len(c.windows)))
}

// Len returns the number of tracked windows.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// Cleanup removes windows not charged since maxAge ago.
func (c *Controller) Cleanup(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	threshold := c.now().Add(-maxAge)
	for k, w := range c.windows {
		if w.lastSeen.Before(threshold) {
			delete(c.windows, k)
		}
	}
	trackedWindows.Set(float64(len(c.windows)))
}

func (c *Controller) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.Cleanup(c.maxAge)
		}
	}
}

// Close stops the cleanup goroutine. It blocks until the goroutine exits.
func (c *Controller) Close() {
	close(c.stopChan)
	c.wg.Wait()
}
