// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package llfunc

import (
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/ops"
	"github.com/holomush/simscript/internal/world"
)

// Constants lists the globals installed next to the functions.
func Constants() map[string]lua.LValue {
	return map[string]lua.LValue{
		"TRUE":  lua.LNumber(1),
		"FALSE": lua.LNumber(0),
		"PI":    lua.LNumber(math.Pi),

		"NULL_KEY": lua.LString(core.NullKey.String()),
		"EOF":      lua.LString(asset.EOF),

		"DATA_ONLINE":  lua.LNumber(ops.DataOnline),
		"DATA_NAME":    lua.LNumber(ops.DataName),
		"DATA_BORN":    lua.LNumber(ops.DataBorn),
		"DATA_RATING":  lua.LNumber(ops.DataRating),
		"DATA_PAYINFO": lua.LNumber(ops.DataPayInfo),

		"AGENT":    lua.LNumber(world.TypeAgent),
		"ACTIVE":   lua.LNumber(world.TypeActive),
		"PASSIVE":  lua.LNumber(world.TypePassive),
		"SCRIPTED": lua.LNumber(world.TypeScripted),

		"REMOTE_DATA_REPLY": lua.LNumber(ops.RemoteDataReply),

		"PUBLIC_CHANNEL": lua.LNumber(world.PublicChannel),
		"DEBUG_CHANNEL":  lua.LNumber(world.DebugChannel),

		"OS_LISTEN_REGEX_NAME":    lua.LNumber(listen.RegexName),
		"OS_LISTEN_REGEX_MESSAGE": lua.LNumber(listen.RegexMessage),
	}
}

func setConstants(L *lua.LState) {
	for name, value := range Constants() {
		L.SetGlobal(name, value)
	}
}
