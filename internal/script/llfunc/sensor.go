// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package llfunc

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
	"github.com/holomush/simscript/internal/world"
)

// Positions within a detection as built by listen.DetectedValue.
const (
	detectedKey = iota
	detectedName
	detectedType
	detectedPos
	detectedDist
)

func (b *binding) checkQuery(L *lua.LState, fn string) (world.Query, error) {
	name := L.CheckString(1)
	key, err := checkKey(L, 2, fn, true)
	if err != nil {
		return world.Query{}, err
	}
	q := world.Query{
		Name:  name,
		Key:   key,
		Type:  L.CheckInt(3),
		Range: float64(L.CheckNumber(4)),
		Arc:   float64(L.CheckNumber(5)),
	}
	if !isFinite(q.Range) || !isFinite(q.Arc) {
		return world.Query{}, core.ErrInvalidArgument(fn, "range and arc must be finite numbers")
	}
	if q.Range < 0 || q.Arc < 0 {
		return world.Query{}, core.ErrInvalidArgument(fn, "range and arc must not be negative")
	}
	return q, nil
}

// llSensor(name, key, type, range, arc)
func (b *binding) sensor(L *lua.LState) int {
	const fn = "llSensor"
	q, err := b.checkQuery(L, fn)
	if err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.host.Sense(b.ctx(L), b.ref, q); err != nil {
		return b.reject(L, fn, err)
	}
	return 0
}

// llSensorRepeat(name, key, type, range, arc, rate)
func (b *binding) sensorRepeat(L *lua.LState) int {
	const fn = "llSensorRepeat"
	q, err := b.checkQuery(L, fn)
	if err != nil {
		return b.reject(L, fn, err)
	}
	interval, err := checkSeconds(fn, float64(L.CheckNumber(6)))
	if err != nil {
		return b.reject(L, fn, err)
	}
	if interval <= 0 {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "rate must be positive"))
	}
	if err := b.host.SenseRepeat(b.ctx(L), b.ref, q, interval); err != nil {
		return b.reject(L, fn, err)
	}
	return 0
}

// llSensorRemove()
func (b *binding) sensorRemove(_ *lua.LState) int {
	b.host.SensorRemove(b.ref)
	return 0
}

// detected returns field of detection n, or false outside a sensor handler.
func (b *binding) detected(L *lua.LState, field int) (core.Value, bool) {
	v, ok := b.inst.Detected(L.CheckInt(1))
	if !ok {
		return core.Value{}, false
	}
	items := v.Items()
	if field >= len(items) {
		return core.Value{}, false
	}
	return items[field], true
}

func (b *binding) detectedKey(L *lua.LState) int {
	v, ok := b.detected(L, detectedKey)
	if !ok {
		L.Push(lua.LString(core.NullKey.String()))
		return 1
	}
	L.Push(lua.LString(v.KeyValue().String()))
	return 1
}

func (b *binding) detectedName(L *lua.LState) int {
	v, _ := b.detected(L, detectedName)
	L.Push(lua.LString(v.String()))
	return 1
}

func (b *binding) detectedType(L *lua.LState) int {
	v, _ := b.detected(L, detectedType)
	L.Push(lua.LNumber(v.Int()))
	return 1
}

func (b *binding) detectedPos(L *lua.LState) int {
	v, _ := b.detected(L, detectedPos)
	L.Push(scriptlua.VectorTable(L, v.Vector()))
	return 1
}

func (b *binding) detectedDist(L *lua.LState) int {
	v, _ := b.detected(L, detectedDist)
	L.Push(lua.LNumber(v.Float()))
	return 1
}
