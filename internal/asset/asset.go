// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package asset serves the inventory a part carries: notecards scripts read
// line by line and landmarks they resolve to positions.
package asset

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// EOF is returned for a line past the end of a notecard.
const EOF = "\n\n\n"

// MaxLineBytes caps each notecard line handed to a script.
const MaxLineBytes = 1024

// ErrNotFound is returned for an inventory item the part does not carry.
var ErrNotFound = errors.New("inventory item not found")

// Inventory is the content of one part.
type Inventory struct {
	Notecards map[string][]string
	Landmarks map[string]core.Vector
}

// Store reads part inventory.
type Store interface {
	NotecardLine(ctx context.Context, part ulid.ULID, name string, line int) (string, error)
	Landmark(ctx context.Context, part ulid.ULID, name string) (core.Vector, error)
	Contains(part ulid.ULID, name string) bool
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	parts map[ulid.ULID]Inventory
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{parts: make(map[ulid.ULID]Inventory)}
}

// Put replaces the inventory of part.
func (m *Memory) Put(part ulid.ULID, inv Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts[part] = inv
}

// Remove forgets part.
func (m *Memory) Remove(part ulid.ULID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, part)
}

// Contains reports whether part carries a notecard or landmark called name.
func (m *Memory) Contains(part ulid.ULID, name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv := m.parts[part]
	if _, ok := inv.Notecards[name]; ok {
		return true
	}
	_, ok := inv.Landmarks[name]
	return ok
}

// Items lists the names in part's inventory, sorted.
func (m *Memory) Items(part ulid.ULID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv := m.parts[part]
	names := make([]string, 0, len(inv.Notecards)+len(inv.Landmarks))
	for name := range inv.Notecards {
		names = append(names, name)
	}
	for name := range inv.Landmarks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NotecardLine returns line (zero based) of the named notecard, or EOF when
// the notecard has fewer lines.
func (m *Memory) NotecardLine(ctx context.Context, part ulid.ULID, name string, line int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	lines, ok := m.parts[part].Notecards[name]
	if !ok {
		return "", oops.With("part", part.String()).With("notecard", name).Wrap(ErrNotFound)
	}
	if line < 0 || line >= len(lines) {
		return EOF, nil
	}
	return lines[line], nil
}

// Landmark returns the position the named landmark points at.
func (m *Memory) Landmark(ctx context.Context, part ulid.ULID, name string) (core.Vector, error) {
	if err := ctx.Err(); err != nil {
		return core.Vector{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.parts[part].Landmarks[name]
	if !ok {
		return core.Vector{}, oops.With("part", part.String()).With("landmark", name).Wrap(ErrNotFound)
	}
	return pos, nil
}

// ReadNotecard loads a notecard file, splitting it into lines and truncating
// each to MaxLineBytes.
func ReadNotecard(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, oops.With("path", path).Hint("failed to open notecard").Wrap(err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) > MaxLineBytes {
			line = line[:MaxLineBytes]
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, oops.With("path", path).Hint("failed to read notecard").Wrap(err)
	}
	return lines, nil
}

// LoadInventory reads every notecard file named in notecards (name to path
// relative to dir) and pairs the result with landmarks.
func LoadInventory(dir string, notecards map[string]string, landmarks map[string]core.Vector) (Inventory, error) {
	inv := Inventory{
		Notecards: make(map[string][]string, len(notecards)),
		Landmarks: make(map[string]core.Vector, len(landmarks)),
	}
	for name, file := range notecards {
		lines, err := ReadNotecard(filepath.Join(dir, file))
		if err != nil {
			return Inventory{}, oops.With("notecard", name).Wrap(err)
		}
		inv.Notecards[name] = lines
	}
	for name, pos := range landmarks {
		inv.Landmarks[name] = pos
	}
	return inv, nil
}
