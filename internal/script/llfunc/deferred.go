// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package llfunc

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/ops"
	"github.com/holomush/simscript/internal/script/capability"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/transport"
)

// llRequestAgentData(id, data) -> token
func (b *binding) requestAgentData(L *lua.LState) int {
	const fn = "llRequestAgentData"
	id, err := checkKey(L, 1, fn, false)
	if err != nil {
		return b.reject(L, fn, err)
	}
	data := L.CheckInt(2)
	if !ops.ValidAgentData(data) {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "unknown data selector "+strconv.Itoa(data)))
	}
	if err := b.enforcer.Require(b.ref, fn, capability.DirectoryRead); err != nil {
		return b.reject(L, fn, err)
	}

	token, ok := b.issue(L, fn, ops.AgentData{Directory: b.deps.Directory, Agent: id, Data: data})
	if !ok {
		return 2
	}
	b.pause(L, throttle.AgentData)
	return pushSuccess(L, lua.LString(token.String()))
}

// llRequestDisplayName(id) -> token
func (b *binding) requestDisplayName(L *lua.LState) int {
	const fn = "llRequestDisplayName"
	id, err := checkKey(L, 1, fn, false)
	if err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.enforcer.Require(b.ref, fn, capability.DirectoryRead); err != nil {
		return b.reject(L, fn, err)
	}
	token, ok := b.issue(L, fn, ops.DisplayName{Directory: b.deps.Directory, Agent: id})
	if !ok {
		return 2
	}
	return pushSuccess(L, lua.LString(token.String()))
}

// llRequestUsername(id) -> token
func (b *binding) requestUsername(L *lua.LState) int {
	const fn = "llRequestUsername"
	id, err := checkKey(L, 1, fn, false)
	if err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.enforcer.Require(b.ref, fn, capability.DirectoryRead); err != nil {
		return b.reject(L, fn, err)
	}
	token, ok := b.issue(L, fn, ops.Username{Directory: b.deps.Directory, Agent: id})
	if !ok {
		return 2
	}
	return pushSuccess(L, lua.LString(token.String()))
}

// llEmail(address, subject, body). Nothing is ever delivered back.
func (b *binding) email(L *lua.LState) int {
	const fn = "llEmail"
	to := L.CheckString(1)
	subject := L.CheckString(2)
	body := L.OptString(3, "")

	if err := transport.ValidateAddress(to); err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.enforcer.Require(b.ref, fn, capability.NetEmail); err != nil {
		return b.reject(L, fn, err)
	}

	mail := transport.Mail{
		From:    b.info.Ref.PartID.String() + "@" + b.deps.MailDomain,
		To:      to,
		Subject: subject,
		Body:    body,
	}
	if _, ok := b.issue(L, fn, ops.Email{Mailer: b.deps.Mailer, Mail: mail}); !ok {
		return 2
	}
	b.pause(L, throttle.Email)
	return 0
}

// llSendRemoteData(channel, dest, idata, sdata) -> token
func (b *binding) sendRemoteData(L *lua.LState) int {
	const fn = "llSendRemoteData"
	channel, err := checkKey(L, 1, fn, true)
	if err != nil {
		return b.reject(L, fn, err)
	}
	dest := L.CheckString(2)
	idata := L.CheckInt64(3)
	sdata := L.OptString(4, "")

	if err := transport.ValidateEndpoint(dest); err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.enforcer.Require(b.ref, fn, capability.NetRemoteData); err != nil {
		return b.reject(L, fn, err)
	}

	token, ok := b.issue(L, fn, ops.RemoteData{
		Client:   b.deps.Remote,
		Endpoint: dest,
		Channel:  channel,
		Sender:   b.info.Ref.PartID,
		IData:    idata,
		SData:    sdata,
	})
	if !ok {
		return 2
	}
	b.pause(L, throttle.RemoteData)
	return pushSuccess(L, lua.LString(token.String()))
}

// llHTTPRequest(url, params, body) -> token
//
// params is an optional table: method, mimetype, body_maxlength and a
// headers table. A script over its request rate gets NULL_KEY.
func (b *binding) httpRequest(L *lua.LState) int {
	const fn = "llHTTPRequest"
	req := transport.HTTPRequest{
		URL:  L.CheckString(1),
		Body: L.OptString(3, ""),
	}
	if params, ok := L.Get(2).(*lua.LTable); ok {
		req.Method = lua.LVAsString(params.RawGetString("method"))
		req.MimeType = lua.LVAsString(params.RawGetString("mimetype"))
		if n, ok := params.RawGetString("body_maxlength").(lua.LNumber); ok {
			req.BodyLimit = int(n)
		}
		if headers, ok := params.RawGetString("headers").(*lua.LTable); ok {
			req.Headers = make(map[string]string)
			headers.ForEach(func(k, v lua.LValue) {
				req.Headers[k.String()] = v.String()
			})
		}
	}

	if err := transport.ValidateHTTPRequest(req); err != nil {
		return b.reject(L, fn, err)
	}
	if err := b.enforcer.Require(b.ref, fn, capability.NetHTTP); err != nil {
		return b.reject(L, fn, err)
	}
	if !b.host.AllowHTTP(b.ref) {
		return b.rejectWith(L, fn, core.ErrRateLimited(fn, 0), lua.LString(core.NullKey.String()))
	}

	token, ok := b.issue(L, fn, ops.HTTPRequest{Client: b.deps.HTTP, Request: req})
	if !ok {
		return 2
	}
	return pushSuccess(L, lua.LString(token.String()))
}

// llGetNotecardLine(name, line) -> token
func (b *binding) getNotecardLine(L *lua.LState) int {
	const fn = "llGetNotecardLine"
	name := L.CheckString(1)
	line := L.CheckInt(2)
	if line < 0 {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "line must not be negative"))
	}
	if b.deps.Assets == nil || !b.deps.Assets.Contains(b.ref.PartID, name) {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "no notecard named "+strconv.Quote(name)))
	}
	token, ok := b.issue(L, fn, ops.NotecardLine{Store: b.deps.Assets, Part: b.ref.PartID, Card: name, Line: line})
	if !ok {
		return 2
	}
	return pushSuccess(L, lua.LString(token.String()))
}

// llRequestInventoryData(name) -> token
func (b *binding) requestInventoryData(L *lua.LState) int {
	const fn = "llRequestInventoryData"
	name := L.CheckString(1)
	if b.deps.Assets == nil || !b.deps.Assets.Contains(b.ref.PartID, name) {
		return b.reject(L, fn, core.ErrInvalidArgument(fn, "no inventory item named "+strconv.Quote(name)))
	}
	token, ok := b.issue(L, fn, ops.InventoryData{Store: b.deps.Assets, Part: b.ref.PartID, Item: name})
	if !ok {
		return 2
	}
	return pushSuccess(L, lua.LString(token.String()))
}
