// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package ops

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/registry"
)

// NotecardLine answers llGetNotecardLine.
type NotecardLine struct {
	Store asset.Store
	Part  ulid.ULID
	Card  string
	Line  int
}

var _ registry.Operation = NotecardLine{}

// Name implements registry.Operation.
func (NotecardLine) Name() string { return "notecard_line" }

// Execute implements registry.Operation.
func (o NotecardLine) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	if o.Store == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("assets", nil)
	}
	line, err := o.Store.NotecardLine(ctx, o.Part, o.Card, o.Line)
	if err != nil {
		return registry.Result{}, err
	}
	return dataserver(token, line), nil
}

// Fallback implements registry.Operation.
func (NotecardLine) Fallback(token core.Token, _ error) registry.Result {
	return dataserver(token, asset.EOF)
}

// InventoryData answers llRequestInventoryData with a landmark's position.
type InventoryData struct {
	Store asset.Store
	Part  ulid.ULID
	Item  string
}

var _ registry.Operation = InventoryData{}

// Name implements registry.Operation.
func (InventoryData) Name() string { return "inventory_data" }

// Execute implements registry.Operation.
func (o InventoryData) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	if o.Store == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("assets", nil)
	}
	pos, err := o.Store.Landmark(ctx, o.Part, o.Item)
	if err != nil {
		return registry.Result{}, err
	}
	return dataserver(token, pos.String()), nil
}

// Fallback implements registry.Operation.
func (InventoryData) Fallback(token core.Token, _ error) registry.Result {
	return dataserver(token, "")
}
