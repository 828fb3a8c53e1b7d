// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/simscript/internal/store"
)

// migrator is the part of *store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the agent directory schema",
		Long:  `Apply, revert or inspect the PostgreSQL agent directory migrations.`,
	}
	cmd.AddCommand(
		migrateCmd("up", "Apply all pending migrations", cobra.NoArgs, migrateUp),
		migrateCmd("down", "Revert all migrations (destroys directory data)", cobra.NoArgs, migrateDown),
		migrateCmd("status", "Show the applied version and pending migrations", cobra.NoArgs, migrateStatus),
		migrateCmd("force VERSION", "Mark VERSION as applied without running it", cobra.ExactArgs(1), migrateForce),
	)
	return cmd
}

type migrateFunc func(cmd *cobra.Command, m migrator, args []string) error

func migrateCmd(use, short string, args cobra.PositionalArgs, run migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("a database URL is required (--database-url or DATABASE_URL)")
			}
			m, err := newMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := m.Close(); closeErr != nil {
					cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
				}
			}()
			return run(cmd, m, argv)
		},
	}
}

func migrateUp(cmd *cobra.Command, m migrator, _ []string) error {
	pending, err := m.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Schema is up to date")
		return nil
	}
	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return err
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Schema at version %d\n", v)
	return nil
}

func migrateDown(cmd *cobra.Command, m migrator, _ []string) error {
	cmd.Println("Reverting all migrations...")
	if err := m.Down(); err != nil {
		return err
	}
	cmd.Println("All migrations reverted")
	return nil
}

func migrateStatus(cmd *cobra.Command, m migrator, _ []string) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}
	cmd.Printf("Current version: %d", v)
	if dirty {
		cmd.Print(" (dirty, fix and run `simscript migrate force`)")
	}
	cmd.Println()
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}
	cmd.Println("Pending:")
	for _, p := range pending {
		name, err := store.MigrationName(p)
		if err != nil {
			return err
		}
		cmd.Printf("  %s\n", name)
	}
	return nil
}

func migrateForce(cmd *cobra.Command, m migrator, args []string) error {
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code("INVALID_VERSION").With("version", args[0]).Wrapf(err, "parse version")
	}
	if err := m.Force(v); err != nil {
		return err
	}
	cmd.Printf("Forced schema version %d\n", v)
	return nil
}
