// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/store"
)

const defaultSeedTimeout = 30 * time.Second

// seedAgent is one entry of an agents file.
type seedAgent struct {
	ID          string    `yaml:"id"`
	Username    string    `yaml:"username"`
	DisplayName string    `yaml:"display_name"`
	Born        time.Time `yaml:"born"`
	Online      bool      `yaml:"online"`
	Rating      int       `yaml:"rating"`
	PayInfo     int       `yaml:"payinfo"`
}

// agentCreator is the part of *store.AgentRepository seeding uses.
type agentCreator interface {
	CreateAgent(ctx context.Context, a directory.Account) error
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed AGENTS.yaml",
		Short: "Load agents into the directory",
		Long: `Insert the agents listed in a YAML file into the PostgreSQL agent
directory, applying pending migrations first. Agents that already exist are
skipped, so the command can be rerun.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := readSeedFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("a database URL is required (--database-url or DATABASE_URL)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			m, err := newMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			upErr := m.Up()
			if closeErr := m.Close(); closeErr != nil {
				slog.Warn("closing migrator", "error", closeErr)
			}
			if upErr != nil {
				return upErr
			}

			pool, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			return seedAgents(ctx, cmd, store.NewAgentRepository(pool), accounts)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations")
	return cmd
}

// readSeedFile parses and checks an agents file.
func readSeedFile(path string) ([]directory.Account, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied argument
	if err != nil {
		return nil, oops.With("path", path).Wrapf(err, "read agents file")
	}
	var doc struct {
		Agents []seedAgent `yaml:"agents"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code(core.CodeInvalidArgument).With("path", path).Wrapf(err, "parse agents file")
	}

	accounts := make([]directory.Account, 0, len(doc.Agents))
	for i, a := range doc.Agents {
		id, err := core.ParseULID(a.ID)
		if err != nil {
			return nil, oops.With("path", path).With("index", i).Wrap(err)
		}
		if a.Username == "" {
			return nil, oops.Code(core.CodeInvalidArgument).With("path", path).With("index", i).
				Errorf("agent %s has no username", a.ID)
		}
		born := a.Born
		if born.IsZero() {
			born = time.Now().UTC()
		}
		accounts = append(accounts, directory.Account{
			ID:          id,
			Username:    a.Username,
			DisplayName: a.DisplayName,
			Born:        born,
			Online:      a.Online,
			Rating:      a.Rating,
			PayInfo:     a.PayInfo,
		})
	}
	return accounts, nil
}

func seedAgents(ctx context.Context, cmd *cobra.Command, repo agentCreator, accounts []directory.Account) error {
	var created, skipped int
	for _, a := range accounts {
		err := repo.CreateAgent(ctx, a)
		switch {
		case err == nil:
			created++
			slog.Info("created agent", "agent_id", a.ID.String(), "username", a.Username)
		case errors.Is(err, store.ErrAgentExists):
			skipped++
			slog.Debug("agent already exists", "agent_id", a.ID.String(), "username", a.Username)
		default:
			return oops.Code("SEED_FAILED").With("agent_id", a.ID.String()).Wrap(err)
		}
	}
	cmd.Printf("Seeded %d agent(s), %d already present\n", created, skipped)
	return nil
}
