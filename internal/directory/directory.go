// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package directory resolves agent keys to account records.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no account has the requested key.
var ErrNotFound = errors.New("agent not found")

// Account is the directory record for one agent.
type Account struct {
	ID          ulid.ULID
	Username    string
	DisplayName string
	Born        time.Time
	Online      bool
	Rating      int
	PayInfo     int
}

// Name returns the legacy "First Last" style name scripts see.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// Directory looks up accounts.
type Directory interface {
	LookupAgent(ctx context.Context, id ulid.ULID) (Account, error)
}

// Memory is an in-process Directory.
type Memory struct {
	mu       sync.RWMutex
	accounts map[ulid.ULID]Account
}

var _ Directory = (*Memory)(nil)

// NewMemory creates a directory holding accounts.
func NewMemory(accounts ...Account) *Memory {
	m := &Memory{accounts: make(map[ulid.ULID]Account, len(accounts))}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

// Put adds or replaces an account.
func (m *Memory) Put(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

// SetOnline updates an agent's presence. It reports whether the agent exists.
func (m *Memory) SetOnline(id ulid.ULID, online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return false
	}
	a.Online = online
	m.accounts[id] = a
	return true
}

// LookupAgent implements Directory.
func (m *Memory) LookupAgent(ctx context.Context, id ulid.ULID) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}
