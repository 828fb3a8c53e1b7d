// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package core contains the identifiers, values and event records shared by
// every part of the script runtime.
package core

import "time"

// Event names delivered to script handlers.
const (
	EventStateEntry   = "state_entry"
	EventDataserver   = "dataserver"
	EventListen       = "listen"
	EventSensor       = "sensor"
	EventNoSensor     = "no_sensor"
	EventRemoteData   = "remote_data"
	EventHTTPResponse = "http_response"
)

// EventRecord is one event addressed to one script.
type EventRecord struct {
	Target ScriptRef
	Name   string
	Args   []Value
	// Token is set when the event answers a deferred request.
	Token    Token
	PostedAt time.Time
}

// NewEvent builds an event record for target.
func NewEvent(target ScriptRef, name string, args ...Value) EventRecord {
	return EventRecord{
		Target: target,
		Name:   name,
		Args:   args,
	}
}
