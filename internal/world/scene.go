// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package world models the parts of the simulated region the script runtime
// needs: where things are, what a sensor can see, and how chat travels.
package world

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
)

// Detection type bits, combinable in a sensor query.
const (
	TypeAgent    = 1
	TypeActive   = 2
	TypePassive  = 4
	TypeScripted = 8
)

// MaxDetected caps the number of entities one sensor sweep reports.
const MaxDetected = 16

// Entity is something a sensor can detect.
type Entity struct {
	Key   ulid.ULID
	Name  string
	Type  int
	Pos   core.Vector
	Owner ulid.ULID
}

// Query describes a sensor sweep.
type Query struct {
	Name  string
	Key   ulid.ULID
	Type  int
	Range float64
	// Arc is the half-angle in radians around the sensing part's forward
	// axis; math.Pi covers the whole sphere.
	Arc float64
}

// Detected is one sensor hit.
type Detected struct {
	Entity
	Dist float64
}

// Scene answers position and detection questions about the region.
type Scene interface {
	PositionOf(key ulid.ULID) (core.Vector, bool)
	Detect(ctx context.Context, origin ulid.ULID, q Query) ([]Detected, error)
}

// MemoryScene is an in-process Scene.
type MemoryScene struct {
	mu       sync.RWMutex
	entities map[ulid.ULID]Entity
}

var _ Scene = (*MemoryScene)(nil)

// NewMemoryScene creates an empty scene.
func NewMemoryScene() *MemoryScene {
	return &MemoryScene{entities: make(map[ulid.ULID]Entity)}
}

// Put adds or replaces an entity.
func (s *MemoryScene) Put(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.Key] = e
}

// Move updates an entity's position. It reports whether the entity exists.
func (s *MemoryScene) Move(key ulid.ULID, pos core.Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	if !ok {
		return false
	}
	e.Pos = pos
	s.entities[key] = e
	return true
}

// Remove deletes an entity.
func (s *MemoryScene) Remove(key ulid.ULID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, key)
}

// Lookup returns an entity by key.
func (s *MemoryScene) Lookup(key ulid.ULID) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[key]
	return e, ok
}

// PositionOf returns where an entity is.
func (s *MemoryScene) PositionOf(key ulid.ULID) (core.Vector, bool) {
	e, ok := s.Lookup(key)
	return e.Pos, ok
}

// Detect returns the entities origin can sense, nearest first.
func (s *MemoryScene) Detect(ctx context.Context, origin ulid.ULID, q Query) ([]Detected, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	self, ok := s.entities[origin]
	if !ok {
		return nil, nil
	}

	var hits []Detected
	for key, e := range s.entities {
		if key == origin {
			continue
		}
		if !q.matches(e) {
			continue
		}
		offset := e.Pos.Sub(self.Pos)
		dist := offset.Len()
		if dist > q.Range {
			continue
		}
		if !withinArc(offset, dist, q.Arc) {
			continue
		}
		hits = append(hits, Detected{Entity: e, Dist: dist})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist == hits[j].Dist {
			return hits[i].Key.Compare(hits[j].Key) < 0
		}
		return hits[i].Dist < hits[j].Dist
	})
	if len(hits) > MaxDetected {
		hits = hits[:MaxDetected]
	}
	return hits, nil
}

func (q Query) matches(e Entity) bool {
	if q.Type&e.Type == 0 {
		return false
	}
	if q.Name != "" && q.Name != e.Name {
		return false
	}
	if q.Key != core.NullKey && q.Key != e.Key {
		return false
	}
	return true
}

// withinArc checks the angle between offset and the +X forward axis.
func withinArc(offset core.Vector, dist, arc float64) bool {
	if arc >= math.Pi || dist == 0 {
		return true
	}
	cos := offset.X / dist
	return math.Acos(math.Max(-1, math.Min(1, cos))) <= arc
}
