// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import "github.com/oklog/ulid/v2"

// ScriptRef identifies one running script: the part that carries it and the
// inventory item it was started from. It is comparable and is used as a map
// key by every table that tracks per-script state.
type ScriptRef struct {
	PartID ulid.ULID
	ItemID ulid.ULID
}

// NewScriptRef creates a reference for a new script item inside part.
func NewScriptRef(part ulid.ULID) ScriptRef {
	return ScriptRef{PartID: part, ItemID: NewULID()}
}

// String renders the reference as "part/item".
func (r ScriptRef) String() string {
	return r.PartID.String() + "/" + r.ItemID.String()
}

// IsZero reports whether r refers to nothing.
func (r ScriptRef) IsZero() bool {
	return r.PartID == NullKey && r.ItemID == NullKey
}
