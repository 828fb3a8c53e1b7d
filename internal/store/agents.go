// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
)

// ErrAgentExists is returned by CreateAgent for a duplicate id or username.
var ErrAgentExists = errors.New("agent already exists")

// AgentRepository is a directory.Directory backed by the agents table.
type AgentRepository struct {
	pool poolIface
}

var _ directory.Directory = (*AgentRepository)(nil)

// NewAgentRepository creates a repository over pool.
func NewAgentRepository(pool poolIface) *AgentRepository {
	return &AgentRepository{pool: pool}
}

// LookupAgent implements directory.Directory. A missing row maps to
// directory.ErrNotFound; a missing table means the schema was never migrated
// and is reported as the directory being unavailable.
func (r *AgentRepository) LookupAgent(ctx context.Context, id ulid.ULID) (directory.Account, error) {
	var (
		a     directory.Account
		idStr string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, display_name, born_at, online, rating, payinfo
		 FROM agents WHERE id = $1`,
		id.String()).Scan(&idStr, &a.Username, &a.DisplayName, &a.Born, &a.Online, &a.Rating, &a.PayInfo)
	if errors.Is(err, pgx.ErrNoRows) {
		return directory.Account{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Account{}, mapError(err, "lookup agent", id)
	}

	a.ID, err = ulid.Parse(idStr)
	if err != nil {
		return directory.Account{}, oops.With("operation", "parse agent id").With("agent_id", idStr).Wrap(err)
	}
	return a, nil
}

// CreateAgent inserts a new agent.
func (r *AgentRepository) CreateAgent(ctx context.Context, a directory.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO agents (id, username, display_name, born_at, online, rating, payinfo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID.String(), a.Username, a.DisplayName, a.Born, a.Online, a.Rating, a.PayInfo)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.With("agent_id", a.ID.String()).With("username", a.Username).Wrap(ErrAgentExists)
		}
		return mapError(err, "create agent", a.ID)
	}
	return nil
}

// SetOnline records an agent's presence. It returns directory.ErrNotFound if
// the agent does not exist.
func (r *AgentRepository) SetOnline(ctx context.Context, id ulid.ULID, online bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE agents SET online = $2, updated_at = now() WHERE id = $1`,
		id.String(), online)
	if err != nil {
		return mapError(err, "set agent online", id)
	}
	if tag.RowsAffected() == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// CountOnline returns how many agents are online.
func (r *AgentRepository) CountOnline(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM agents WHERE online`).Scan(&n); err != nil {
		return 0, mapError(err, "count online agents", ulid.ULID{})
	}
	return n, nil
}

func mapError(err error, operation string, id ulid.ULID) error {
	builder := oops.With("operation", operation)
	if id != (ulid.ULID{}) {
		builder = builder.With("agent_id", id.String())
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return builder.Code(core.CodeCollaboratorUnavailable).Hint("run `simscript migrate up`").Wrap(err)
	}
	return builder.Wrap(err)
}
