// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ops defines the deferred operations scripts can issue. Each type
// carries its own payload, performs the work against one collaborator and
// knows the reply to send when that collaborator fails.
package ops

import (
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/registry"
)

// Agent data selectors accepted by llRequestAgentData.
const (
	DataOnline  = 1
	DataName    = 2
	DataBorn    = 3
	DataRating  = 4
	DataPayInfo = 8
)

// RemoteDataReply is the event type of a remote_data reply.
const RemoteDataReply = 3

// HTTPFailureStatus is reported to scripts when a request never got a
// response.
const HTTPFailureStatus = 499

func dataserver(token core.Token, data string) registry.Result {
	return registry.Result{
		Event: core.EventDataserver,
		Args:  []core.Value{core.Key(token.Key()), core.String(data)},
	}
}

// ValidAgentData reports whether data is a known selector.
func ValidAgentData(data int) bool {
	switch data {
	case DataOnline, DataName, DataBorn, DataRating, DataPayInfo:
		return true
	}
	return false
}
