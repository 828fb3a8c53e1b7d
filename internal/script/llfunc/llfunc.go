// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package llfunc binds the ll* functions into script states.
//
// Calls that are rejected synchronously return nil and a message, the
// convention every host function follows. Deferred calls return their
// request token; the answer arrives later as an event.
//
//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package llfunc

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/registry"
	"github.com/holomush/simscript/internal/script/capability"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/transport"
	"github.com/holomush/simscript/internal/world"
)

// Host is the region as the bindings see it. Calls that create
// registrations take the calling incarnation's context and fail once it is
// done, so a script being reset cannot register anything new.
type Host interface {
	Request(ctx context.Context, owner core.ScriptRef, op registry.Operation) (core.Token, error)
	Charge(owner core.ScriptRef, category throttle.Category) time.Duration
	AllowHTTP(owner core.ScriptRef) bool

	Listen(ctx context.Context, owner core.ScriptRef, channel int32, filter listen.Filter) (int, error)
	ListenControl(owner core.ScriptRef, handle int, active bool) bool
	ListenRemove(owner core.ScriptRef, handle int) bool
	Say(owner core.ScriptRef, kind world.ChatKind, channel int32, message string)

	Sense(ctx context.Context, owner core.ScriptRef, q world.Query) error
	SenseRepeat(ctx context.Context, owner core.ScriptRef, q world.Query, interval time.Duration) error
	SensorRemove(owner core.ScriptRef) bool

	ResetScript(owner core.ScriptRef) error
	Position(owner core.ScriptRef) core.Vector
	Key2Name(id ulid.ULID) string
}

// Deps are the collaborators deferred operations run against.
type Deps struct {
	Directory directory.Directory
	Mailer    transport.Mailer
	Remote    transport.RemoteData
	HTTP      transport.HTTPClient
	Assets    asset.Store
	// MailDomain forms the sender address of llEmail: <part key>@MailDomain.
	MailDomain string
}

// Functions installs the ll* bindings.
type Functions struct {
	host     Host
	enforcer *capability.Enforcer
	deps     Deps
}

var _ scriptlua.Binder = (*Functions)(nil)

// New creates the bindings. It panics if host or enforcer is nil.
func New(host Host, enforcer *capability.Enforcer, deps Deps) *Functions {
	if host == nil || enforcer == nil {
		panic("llfunc.New: host and enforcer are required")
	}
	if deps.MailDomain == "" {
		deps.MailDomain = "lsl.simscript.local"
	}
	return &Functions{host: host, enforcer: enforcer, deps: deps}
}

// binding is the per-incarnation view the closures share.
type binding struct {
	*Functions
	inst *scriptlua.Instance
	ref  core.ScriptRef
	info scriptlua.Info
}

// Bind implements scriptlua.Binder.
func (f *Functions) Bind(L *lua.LState, inst *scriptlua.Instance) {
	b := &binding{Functions: f, inst: inst, ref: inst.Ref(), info: inst.Info()}

	fns := map[string]lua.LGFunction{
		// deferred
		"llRequestAgentData":     b.requestAgentData,
		"llRequestDisplayName":   b.requestDisplayName,
		"llRequestUsername":      b.requestUsername,
		"llEmail":                b.email,
		"llSendRemoteData":       b.sendRemoteData,
		"llHTTPRequest":          b.httpRequest,
		"llGetNotecardLine":      b.getNotecardLine,
		"llRequestInventoryData": b.requestInventoryData,
		// chat and listens
		"llListen":        b.listen,
		"osListenRegex":   b.listenRegex,
		"llListenControl": b.listenControl,
		"llListenRemove":  b.listenRemove,
		"llWhisper":       b.say(world.ChatWhisper),
		"llSay":           b.say(world.ChatSay),
		"llShout":         b.say(world.ChatShout),
		"llRegionSay":     b.regionSay,
		"llOwnerSay":      b.ownerSay,
		// sensors
		"llSensor":        b.sensor,
		"llSensorRepeat":  b.sensorRepeat,
		"llSensorRemove":  b.sensorRemove,
		"llDetectedKey":   b.detectedKey,
		"llDetectedName":  b.detectedName,
		"llDetectedType":  b.detectedType,
		"llDetectedPos":   b.detectedPos,
		"llDetectedDist":  b.detectedDist,
		// lifecycle and identity
		"llResetScript":   b.resetScript,
		"llSleep":         b.sleep,
		"llGetKey":        b.getKey,
		"llGetOwner":      b.getOwner,
		"llGetScriptName": b.getScriptName,
		"llGetObjectName": b.getObjectName,
		"llGetPos":        b.getPos,
		"llKey2Name":      b.key2Name,
	}
	for name, fn := range fns {
		L.SetGlobal(name, L.NewFunction(fn))
	}
	setConstants(L)
}

func (b *binding) ctx(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// reject reports a synchronous failure to the script as nil, message.
func (b *binding) reject(L *lua.LState, fn string, err error) int {
	return b.rejectWith(L, fn, err, lua.LNil)
}

// rejectWith is reject for calls whose failure value is not nil.
func (b *binding) rejectWith(L *lua.LState, fn string, err error, value lua.LValue) int {
	slog.Debug("call rejected",
		"script", b.ref.String(),
		"function", fn,
		"error", err)
	L.Push(value)
	L.Push(lua.LString(core.ScriptMessage(err)))
	return 2
}

func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

// pause applies a throttle delay to the calling script.
func (b *binding) pause(L *lua.LState, category throttle.Category) {
	if d := b.host.Charge(b.ref, category); d > 0 {
		_ = scriptlua.Sleep(b.ctx(L), d) //nolint:errcheck // cancellation unwinds the handler
	}
}

// issue registers op and returns its token to the script.
func (b *binding) issue(L *lua.LState, fn string, op registry.Operation) (core.Token, bool) {
	token, err := b.host.Request(b.ctx(L), b.ref, op)
	if err != nil {
		b.reject(L, fn, err)
		return core.Token{}, false
	}
	return token, true
}

func checkKey(L *lua.LState, n int, fn string, allowNull bool) (ulid.ULID, error) {
	s := L.CheckString(n)
	id, err := core.ParseKey(s)
	if err != nil {
		return core.NullKey, err
	}
	if id == core.NullKey && !allowNull {
		return core.NullKey, core.ErrInvalidArgument(fn, "key must not be NULL_KEY")
	}
	return id, nil
}

// toBool treats numbers the way script integers do: zero is false.
func toBool(v lua.LValue) bool {
	if n, ok := v.(lua.LNumber); ok {
		return n != 0
	}
	return lua.LVAsBool(v)
}

// checkSeconds converts a script's seconds to a duration. Non-finite values
// are rejected; values beyond the duration range saturate.
func checkSeconds(fn string, secs float64) (time.Duration, error) {
	if !isFinite(secs) {
		return 0, core.ErrInvalidArgument(fn, "seconds must be a finite number")
	}
	ns := secs * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return time.Duration(math.MaxInt64), nil
	case ns <= math.MinInt64:
		return time.Duration(math.MinInt64), nil
	}
	return time.Duration(ns), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
