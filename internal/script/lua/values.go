// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
)

// ToLua converts an event argument. Keys become their string form, vectors
// become {x=, y=, z=} tables and lists become arrays.
func ToLua(L *lua.LState, v core.Value) lua.LValue {
	switch v.Kind() {
	case core.KindInteger:
		return lua.LNumber(v.Int())
	case core.KindFloat:
		return lua.LNumber(v.Float())
	case core.KindKey:
		return lua.LString(v.KeyValue().String())
	case core.KindVector:
		return VectorTable(L, v.Vector())
	case core.KindList:
		t := L.NewTable()
		for _, item := range v.Items() {
			t.Append(ToLua(L, item))
		}
		return t
	default:
		return lua.LString(v.String())
	}
}

// VectorTable builds the table form of a vector.
func VectorTable(L *lua.LState, v core.Vector) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	t.RawSetString("z", lua.LNumber(v.Z))
	return t
}

// ToVector reads a vector from a {x=, y=, z=} table or a "<x, y, z>" string.
func ToVector(v lua.LValue) (core.Vector, bool) {
	switch val := v.(type) {
	case *lua.LTable:
		x, xok := val.RawGetString("x").(lua.LNumber)
		y, yok := val.RawGetString("y").(lua.LNumber)
		z, zok := val.RawGetString("z").(lua.LNumber)
		if !xok || !yok || !zok {
			return core.Vector{}, false
		}
		return core.Vector{X: float64(x), Y: float64(y), Z: float64(z)}, true
	case lua.LString:
		vec, err := core.ParseVector(string(val))
		if err != nil {
			return core.Vector{}, false
		}
		return vec, true
	default:
		return core.Vector{}, false
	}
}
