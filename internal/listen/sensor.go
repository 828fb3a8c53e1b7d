// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package listen

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/world"
)

// Sensor defaults.
const (
	MaxSensorRange          = 96.0
	DefaultSensorResolution = 500 * time.Millisecond
	MinSensorRepeatInterval = 100 * time.Millisecond
)

// Detector runs sensor sweeps. world.Scene satisfies it.
type Detector interface {
	Detect(ctx context.Context, origin ulid.ULID, q world.Query) ([]world.Detected, error)
}

// SensorRegistration is a pending sweep.
type SensorRegistration struct {
	Owner    core.ScriptRef
	Query    world.Query
	Interval time.Duration
	NextScan time.Time

	removed bool
}

// Repeating reports whether the sweep reschedules itself.
func (s *SensorRegistration) Repeating() bool {
	return s.Interval > 0
}

// SensorOption configures Sensors.
type SensorOption func(*Sensors)

// WithResolution sets how often Run checks for due sweeps.
func WithResolution(d time.Duration) SensorOption {
	return func(s *Sensors) {
		if d > 0 {
			s.resolution = d
		}
	}
}

// WithSensorClock replaces time.Now.
func WithSensorClock(now func() time.Time) SensorOption {
	return func(s *Sensors) {
		s.now = now
	}
}

// Sensors schedules one-shot and repeating sweeps and posts their results.
type Sensors struct {
	detector   Detector
	poster     Poster
	resolution time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	oneShots map[core.ScriptRef][]*SensorRegistration
	repeats  map[core.ScriptRef]*SensorRegistration
}

// NewSensors creates a sensor scheduler.
func NewSensors(detector Detector, poster Poster, opts ...SensorOption) *Sensors {
	s := &Sensors{
		detector:   detector,
		poster:     poster,
		resolution: DefaultSensorResolution,
		now:        time.Now,
		oneShots:   make(map[core.ScriptRef][]*SensorRegistration),
		repeats:    make(map[core.ScriptRef]*SensorRegistration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func clampQuery(q world.Query) world.Query {
	q.Range = math.Max(0, math.Min(q.Range, MaxSensorRange))
	q.Arc = math.Max(0, math.Min(q.Arc, math.Pi))
	return q
}

// Sense schedules a single sweep for the next tick.
func (s *Sensors) Sense(owner core.ScriptRef, q world.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oneShots[owner] = append(s.oneShots[owner], &SensorRegistration{
		Owner:    owner,
		Query:    clampQuery(q),
		NextScan: s.now(),
	})
}

// SenseRepeat replaces owner's repeating sweep. Intervals below
// MinSensorRepeatInterval are raised to it.
func (s *Sensors) SenseRepeat(owner core.ScriptRef, q world.Query, interval time.Duration) {
	if interval < MinSensorRepeatInterval {
		interval = MinSensorRepeatInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.repeats[owner]; ok {
		old.removed = true
	}
	s.repeats[owner] = &SensorRegistration{
		Owner:    owner,
		Query:    clampQuery(q),
		Interval: interval,
		NextScan: s.now(),
	}
}

// Remove cancels owner's repeating sweep.
func (s *Sensors) Remove(owner core.ScriptRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.repeats[owner]
	if !ok {
		return false
	}
	reg.removed = true
	delete(s.repeats, owner)
	return true
}

// RemoveAllFor cancels every sweep owner has, including one already running.
func (s *Sensors) RemoveAllFor(owner core.ScriptRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.repeats[owner]; ok {
		reg.removed = true
		delete(s.repeats, owner)
	}
	for _, reg := range s.oneShots[owner] {
		reg.removed = true
	}
	delete(s.oneShots, owner)
}

// Repeat returns a copy of owner's repeating sweep.
func (s *Sensors) Repeat(owner core.ScriptRef) (SensorRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.repeats[owner]
	if !ok {
		return SensorRegistration{}, false
	}
	return *reg, true
}

// Tick runs every due sweep and returns how many ran.
func (s *Sensors) Tick(ctx context.Context) int {
	due := s.collectDue()
	for _, reg := range due {
		hits, err := s.detector.Detect(ctx, reg.Owner.PartID, reg.Query)
		if err != nil {
			slog.Warn("sensor sweep failed",
				"script", reg.Owner.String(),
				"error", err)
			continue
		}
		s.deliver(reg, hits)
	}
	return len(due)
}

// Run ticks at the configured resolution until ctx is done.
func (s *Sensors) Run(ctx context.Context) {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Sensors) collectDue() []*SensorRegistration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*SensorRegistration
	for owner, regs := range s.oneShots {
		due = append(due, regs...)
		delete(s.oneShots, owner)
	}
	for _, reg := range s.repeats {
		if reg.NextScan.After(now) {
			continue
		}
		due = append(due, reg)
		reg.NextScan = now.Add(reg.Interval)
	}
	return due
}

// deliver posts the sweep result unless the sweep was cancelled while it ran.
func (s *Sensors) deliver(reg *SensorRegistration, hits []world.Detected) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reg.removed {
		return
	}

	if len(hits) == 0 {
		s.poster.Post(core.NewEvent(reg.Owner, core.EventNoSensor))
		sensorSweeps.WithLabelValues("empty").Inc()
		return
	}

	detected := make([]core.Value, 0, len(hits))
	for _, h := range hits {
		detected = append(detected, DetectedValue(h))
	}
	s.poster.Post(core.NewEvent(reg.Owner, core.EventSensor,
		core.Integer(int64(len(hits))),
		core.List(detected...),
	))
	sensorSweeps.WithLabelValues("detected").Inc()
}

// DetectedValue encodes one hit as [key, name, type, pos, dist].
func DetectedValue(h world.Detected) core.Value {
	return core.List(
		core.Key(h.Key),
		core.String(h.Name),
		core.Integer(int64(h.Type)),
		core.Vec(h.Pos),
		core.Float(h.Dist),
	)
}
