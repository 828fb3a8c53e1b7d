// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package llfunc

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/world"
)

// llListen(channel, name, key, message) -> handle
func (b *binding) listen(L *lua.LState) int {
	return b.openListen(L, "llListen", 0)
}

// osListenRegex(channel, name, key, message, flags) -> handle
func (b *binding) listenRegex(L *lua.LState) int {
	flags := L.CheckInt(5)
	if flags&^(listen.RegexName|listen.RegexMessage) != 0 {
		return b.rejectWith(L, "osListenRegex", core.ErrInvalidArgument("osListenRegex", "unknown regex flags"), lua.LNumber(-1))
	}
	return b.openListen(L, "osListenRegex", flags)
}

func (b *binding) openListen(L *lua.LState, fn string, flags int) int {
	channel := int32(L.CheckInt64(1))
	name := L.CheckString(2)
	key, err := checkKey(L, 3, fn, true)
	if err != nil {
		return b.rejectWith(L, fn, err, lua.LNumber(-1))
	}
	message := L.CheckString(4)

	handle, err := b.host.Listen(b.ctx(L), b.ref, channel, listen.Filter{
		Name:    name,
		Key:     key,
		Message: message,
		Flags:   flags,
	})
	if err != nil {
		return b.rejectWith(L, fn, err, lua.LNumber(-1))
	}
	return pushSuccess(L, lua.LNumber(handle))
}

// llListenControl(handle, active)
func (b *binding) listenControl(L *lua.LState) int {
	b.host.ListenControl(b.ref, L.CheckInt(1), toBool(L.CheckAny(2)))
	return 0
}

// llListenRemove(handle)
func (b *binding) listenRemove(L *lua.LState) int {
	b.host.ListenRemove(b.ref, L.CheckInt(1))
	return 0
}

// llWhisper, llSay, llShout(channel, message)
func (b *binding) say(kind world.ChatKind) lua.LGFunction {
	return func(L *lua.LState) int {
		channel := int32(L.CheckInt64(1))
		message := L.CheckString(2)
		b.host.Say(b.ref, kind, channel, message)
		b.pause(L, throttle.Chat)
		return 0
	}
}

// llRegionSay(channel, message). The public channel is not allowed.
func (b *binding) regionSay(L *lua.LState) int {
	const fn = "llRegionSay"
	channel := int32(L.CheckInt64(1))
	message := L.CheckString(2)
	if channel == world.PublicChannel {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "cannot region say on the public channel"))
	}
	b.host.Say(b.ref, world.ChatRegion, channel, message)
	b.pause(L, throttle.Chat)
	return 0
}

// llOwnerSay(message)
func (b *binding) ownerSay(L *lua.LState) int {
	b.host.Say(b.ref, world.ChatOwner, world.PublicChannel, L.CheckString(1))
	return 0
}
