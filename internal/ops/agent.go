// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package ops

import (
	"context"
	"errors"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/registry"
)

// AgentData answers llRequestAgentData. An unknown agent answers "0".
type AgentData struct {
	Directory directory.Directory
	Agent     ulid.ULID
	Data      int
}

var _ registry.Operation = AgentData{}

// Name implements registry.Operation.
func (AgentData) Name() string { return "agent_data" }

// Execute implements registry.Operation.
func (o AgentData) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	if o.Directory == nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("directory", nil)
	}
	acct, err := o.Directory.LookupAgent(ctx, o.Agent)
	if errors.Is(err, directory.ErrNotFound) {
		return dataserver(token, "0"), nil
	}
	if err != nil {
		return registry.Result{}, core.ErrCollaboratorUnavailable("directory", err)
	}
	return dataserver(token, formatAgentData(acct, o.Data)), nil
}

// Fallback implements registry.Operation.
func (o AgentData) Fallback(token core.Token, _ error) registry.Result {
	if o.Data == DataName || o.Data == DataBorn {
		return dataserver(token, "")
	}
	return dataserver(token, "0")
}

func formatAgentData(acct directory.Account, data int) string {
	switch data {
	case DataOnline:
		if acct.Online {
			return "1"
		}
		return "0"
	case DataName:
		return acct.Name()
	case DataBorn:
		return acct.Born.UTC().Format("2006-01-02")
	case DataRating:
		return strconv.Itoa(acct.Rating)
	case DataPayInfo:
		return strconv.Itoa(acct.PayInfo)
	default:
		return "0"
	}
}

// DisplayName answers llRequestDisplayName.
type DisplayName struct {
	Directory directory.Directory
	Agent     ulid.ULID
}

var _ registry.Operation = DisplayName{}

// Name implements registry.Operation.
func (DisplayName) Name() string { return "display_name" }

// Execute implements registry.Operation.
func (o DisplayName) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	acct, err := lookupName(ctx, o.Directory, o.Agent)
	if err != nil {
		return registry.Result{}, err
	}
	return dataserver(token, acct.Name()), nil
}

// Fallback implements registry.Operation.
func (DisplayName) Fallback(token core.Token, _ error) registry.Result {
	return dataserver(token, "")
}

// Username answers llRequestUsername.
type Username struct {
	Directory directory.Directory
	Agent     ulid.ULID
}

var _ registry.Operation = Username{}

// Name implements registry.Operation.
func (Username) Name() string { return "username" }

// Execute implements registry.Operation.
func (o Username) Execute(ctx context.Context, token core.Token) (registry.Result, error) {
	acct, err := lookupName(ctx, o.Directory, o.Agent)
	if err != nil {
		return registry.Result{}, err
	}
	return dataserver(token, acct.Username), nil
}

// Fallback implements registry.Operation.
func (Username) Fallback(token core.Token, _ error) registry.Result {
	return dataserver(token, "")
}

// lookupName maps an unknown agent to an empty account.
func lookupName(ctx context.Context, dir directory.Directory, id ulid.ULID) (directory.Account, error) {
	if dir == nil {
		return directory.Account{}, core.ErrCollaboratorUnavailable("directory", nil)
	}
	acct, err := dir.LookupAgent(ctx, id)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return directory.Account{}, nil
	case err != nil:
		return directory.Account{}, core.ErrCollaboratorUnavailable("directory", err)
	}
	return acct, nil
}
