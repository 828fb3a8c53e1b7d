// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package capability decides which privileged ll* calls a script may make.
//
// Grants are gobwas/glob patterns with '.' as the segment separator:
//   - '*' matches a single segment
//   - '**' matches any number of segments
//
// "net.*" grants net.email, net.http and net.remote_data; "**" grants
// everything.
package capability

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// Capabilities checked by the ll* bindings.
const (
	DirectoryRead = "directory.read"
	NetEmail      = "net.email"
	NetHTTP       = "net.http"
	NetRemoteData = "net.remote_data"
)

// Known lists every capability a grant can name.
var Known = []string{DirectoryRead, NetEmail, NetHTTP, NetRemoteData}

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer holds per-script grants. The zero value is ready to use.
type Enforcer struct {
	mu     sync.RWMutex
	grants map[core.ScriptRef][]compiledGrant
}

// NewEnforcer creates a capability enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[core.ScriptRef][]compiledGrant)}
}

// Compile validates patterns without storing them.
func Compile(patterns []string) error {
	_, err := compile(patterns)
	return err
}

func compile(patterns []string) ([]compiledGrant, error) {
	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, oops.Code(core.CodeInvalidArgument).With("index", i).Errorf("empty capability pattern")
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code(core.CodeInvalidArgument).With("index", i).With("pattern", pattern).Wrapf(err, "invalid capability pattern")
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}
	return compiled, nil
}

// SetGrants replaces the grants of script. Nothing changes if any pattern is
// invalid.
func (e *Enforcer) SetGrants(script core.ScriptRef, patterns []string) error {
	if script.IsZero() {
		return oops.Code(core.CodeInvalidArgument).Errorf("script reference cannot be empty")
	}
	compiled, err := compile(patterns)
	if err != nil {
		return oops.With("script", script.String()).Wrap(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[core.ScriptRef][]compiledGrant)
	}
	e.grants[script] = compiled
	return nil
}

// RemoveGrants forgets script.
func (e *Enforcer) RemoveGrants(script core.ScriptRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, script)
}

// Grants returns a copy of the patterns granted to script.
func (e *Enforcer) Grants(script core.ScriptRef) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[script]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether script holds capability. Unknown scripts and empty
// capabilities are denied.
func (e *Enforcer) Check(script core.ScriptRef, capability string) bool {
	if capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, grant := range e.grants[script] {
		if grant.glob.Match(capability) {
			return true
		}
	}
	return false
}

// Require returns a PERMISSION_DENIED error when script lacks capability.
func (e *Enforcer) Require(script core.ScriptRef, fn, capability string) error {
	if e.Check(script, capability) {
		return nil
	}
	return core.ErrPermissionDenied(fn, capability)
}
