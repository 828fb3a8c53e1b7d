// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package llfunc

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
)

// llResetScript() does not return: the handler unwinds and the script
// starts over from state_entry.
func (b *binding) resetScript(L *lua.LState) int {
	if err := b.host.ResetScript(b.ref); err != nil {
		return b.reject(L, "llResetScript", err)
	}
	L.RaiseError("script reset")
	return 0
}

// llSleep(seconds)
func (b *binding) sleep(L *lua.LState) int {
	const fn = "llSleep"
	d, err := checkSeconds(fn, float64(L.CheckNumber(1)))
	if err != nil {
		return b.reject(L, fn, err)
	}
	_ = scriptlua.Sleep(b.ctx(L), d) //nolint:errcheck // cancellation unwinds the handler
	return 0
}

func (b *binding) getKey(L *lua.LState) int {
	L.Push(lua.LString(b.ref.PartID.String()))
	return 1
}

func (b *binding) getOwner(L *lua.LState) int {
	L.Push(lua.LString(b.info.Owner.String()))
	return 1
}

func (b *binding) getScriptName(L *lua.LState) int {
	L.Push(lua.LString(b.info.Name))
	return 1
}

func (b *binding) getObjectName(L *lua.LState) int {
	L.Push(lua.LString(b.info.PartName))
	return 1
}

func (b *binding) getPos(L *lua.LState) int {
	L.Push(scriptlua.VectorTable(L, b.host.Position(b.ref)))
	return 1
}

// llKey2Name(id) answers only from what the region already knows; it never
// waits on the directory.
func (b *binding) key2Name(L *lua.LState) int {
	id, err := core.ParseKey(L.CheckString(1))
	if err != nil || id == core.NullKey {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(b.host.Key2Name(id)))
	return 1
}
