// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package listen holds the channel listens and sensor sweeps scripts
// subscribe to, and turns matching world activity into script events.
package listen

import (
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/world"
)

// DefaultMaxPerScript is the default number of open listens per script.
const DefaultMaxPerScript = 64

// Regex flags for Filter.
const (
	RegexName    = 1
	RegexMessage = 2
)

// Poster accepts events for delivery. Post must not block.
type Poster interface {
	Post(rec core.EventRecord) bool
}

// Locator reports where a part is. world.Scene satisfies it.
type Locator interface {
	PositionOf(key ulid.ULID) (core.Vector, bool)
}

// Filter narrows which chat a listen hears. Empty strings and the null key
// match anything.
type Filter struct {
	Name    string
	Key     ulid.ULID
	Message string
	// Flags holds RegexName and RegexMessage bits.
	Flags int
}

// Registration is one open listen.
type Registration struct {
	Handle  int
	Channel int32
	Owner   core.ScriptRef
	Filter  Filter
	Active  bool

	nameRE    *regexp.Regexp
	messageRE *regexp.Regexp
}

func (r *Registration) matches(chat world.Chat) bool {
	switch {
	case r.nameRE != nil:
		if !r.nameRE.MatchString(chat.SenderName) {
			return false
		}
	case r.Filter.Name != "":
		if r.Filter.Name != chat.SenderName {
			return false
		}
	}

	if r.Filter.Key != core.NullKey && r.Filter.Key != chat.SenderKey {
		return false
	}

	switch {
	case r.messageRE != nil:
		return r.messageRE.MatchString(chat.Message)
	case r.Filter.Message != "":
		return r.Filter.Message == chat.Message
	}
	return true
}

type ownerListens struct {
	next int
	regs map[int]*Registration
}

// Table is the channel listen table. It is safe for concurrent use; matching
// holds only the read lock.
type Table struct {
	poster       Poster
	locator      Locator
	maxPerScript int

	mu        sync.RWMutex
	owners    map[core.ScriptRef]*ownerListens
	byChannel map[int32]map[*Registration]struct{}
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithMaxPerScript sets the per-script listen limit.
func WithMaxPerScript(n int) TableOption {
	return func(t *Table) {
		if n > 0 {
			t.maxPerScript = n
		}
	}
}

// NewTable creates a listen table that posts through poster and range-checks
// listeners with locator.
func NewTable(poster Poster, locator Locator, opts ...TableOption) *Table {
	t := &Table{
		poster:       poster,
		locator:      locator,
		maxPerScript: DefaultMaxPerScript,
		owners:       make(map[core.ScriptRef]*ownerListens),
		byChannel:    make(map[int32]map[*Registration]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open registers a listen and returns its handle. Opening a listen identical
// to one owner already has returns the existing handle. Past the per-script
// limit it returns -1 and a LIMIT_EXCEEDED error.
func (t *Table) Open(owner core.ScriptRef, channel int32, filter Filter) (int, error) {
	reg := &Registration{
		Channel: channel,
		Owner:   owner,
		Filter:  filter,
		Active:  true,
	}
	if filter.Flags&RegexName != 0 && filter.Name != "" {
		re, err := regexp.Compile(filter.Name)
		if err != nil {
			return -1, oops.Code(core.CodeInvalidArgument).With("pattern", filter.Name).Wrapf(err, "invalid name pattern")
		}
		reg.nameRE = re
	}
	if filter.Flags&RegexMessage != 0 && filter.Message != "" {
		re, err := regexp.Compile(filter.Message)
		if err != nil {
			return -1, oops.Code(core.CodeInvalidArgument).With("pattern", filter.Message).Wrapf(err, "invalid message pattern")
		}
		reg.messageRE = re
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ol, ok := t.owners[owner]
	if !ok {
		ol = &ownerListens{regs: make(map[int]*Registration)}
		t.owners[owner] = ol
	}
	for handle, existing := range ol.regs {
		if existing.Channel == channel && existing.Filter == filter {
			return handle, nil
		}
	}
	if len(ol.regs) >= t.maxPerScript {
		return -1, core.ErrLimitExceeded("listens", t.maxPerScript)
	}

	ol.next++
	reg.Handle = ol.next
	ol.regs[reg.Handle] = reg

	chanRegs, ok := t.byChannel[channel]
	if !ok {
		chanRegs = make(map[*Registration]struct{})
		t.byChannel[channel] = chanRegs
	}
	chanRegs[reg] = struct{}{}

	openListens.Inc()
	return reg.Handle, nil
}

// SetActive enables or disables a listen. It reports whether the handle
// exists.
func (t *Table) SetActive(owner core.ScriptRef, handle int, active bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok := t.lookup(owner, handle)
	if !ok {
		return false
	}
	reg.Active = active
	return true
}

// Remove deletes a listen. It reports whether the handle existed.
func (t *Table) Remove(owner core.ScriptRef, handle int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	reg, ok := t.lookup(owner, handle)
	if !ok {
		return false
	}
	t.unlink(reg)
	ol := t.owners[owner]
	delete(ol.regs, handle)
	if len(ol.regs) == 0 {
		delete(t.owners, owner)
	}
	return true
}

// RemoveAllFor deletes every listen owned by owner and returns how many were
// removed.
func (t *Table) RemoveAllFor(owner core.ScriptRef) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	ol, ok := t.owners[owner]
	if !ok {
		return 0
	}
	for _, reg := range ol.regs {
		t.unlink(reg)
	}
	delete(t.owners, owner)
	return len(ol.regs)
}

// Registrations returns copies of owner's listens ordered by handle.
func (t *Table) Registrations(owner core.ScriptRef) []Registration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ol, ok := t.owners[owner]
	if !ok {
		return nil
	}
	out := make([]Registration, 0, len(ol.regs))
	for _, reg := range ol.regs {
		out = append(out, Registration{
			Handle:  reg.Handle,
			Channel: reg.Channel,
			Owner:   reg.Owner,
			Filter:  reg.Filter,
			Active:  reg.Active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Len returns the total number of open listens.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, ol := range t.owners {
		n += len(ol.regs)
	}
	return n
}

// MatchAndDeliver posts a listen event to every active registration that
// hears chat, and returns how many were posted. Posting happens under the
// read lock, so once RemoveAllFor returns no further match reaches the owner.
func (t *Table) MatchAndDeliver(chat world.Chat) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	delivered := 0
	for reg := range t.byChannel[chat.Channel] {
		if !reg.Active {
			continue
		}
		if reg.Owner.PartID == chat.SenderPart {
			continue
		}
		if !reg.matches(chat) {
			continue
		}
		if !t.inRange(reg.Owner.PartID, chat) {
			continue
		}

		rec := core.NewEvent(reg.Owner, core.EventListen,
			core.Integer(int64(chat.Channel)),
			core.String(chat.SenderName),
			core.Key(chat.SenderKey),
			core.String(chat.Message),
		)
		if t.poster.Post(rec) {
			delivered++
		}
	}

	if delivered > 0 {
		listenMatches.Add(float64(delivered))
		slog.Debug("chat delivered to listeners",
			"channel", chat.Channel,
			"sender", chat.SenderName,
			"listeners", delivered)
	}
	return delivered
}

func (t *Table) inRange(part ulid.ULID, chat world.Chat) bool {
	limit := chat.Kind.Range()
	if limit == 0 || t.locator == nil {
		return true
	}
	pos, ok := t.locator.PositionOf(part)
	if !ok {
		return false
	}
	return pos.Dist(chat.Origin) <= limit
}

// lookup finds a registration. Caller holds mu.
func (t *Table) lookup(owner core.ScriptRef, handle int) (*Registration, bool) {
	ol, ok := t.owners[owner]
	if !ok {
		return nil, false
	}
	reg, ok := ol.regs[handle]
	return reg, ok
}

// unlink drops reg from the channel index. Caller holds mu.
func (t *Table) unlink(reg *Registration) {
	if chanRegs, ok := t.byChannel[reg.Channel]; ok {
		delete(chanRegs, reg)
		if len(chanRegs) == 0 {
			delete(t.byChannel, reg.Channel)
		}
	}
	openListens.Dec()
}
