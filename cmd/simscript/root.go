// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/holomush/simscript/internal/config"
	"github.com/holomush/simscript/internal/logging"
)

// configFile is the --config flag shared by every subcommand.
var configFile string

// NewRootCmd creates the root command for the simscript CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simscript",
		Short: "simscript - a region host for event-driven object scripts",
		Long: `simscript hosts Lua object scripts in a simulated region. Scripts
issue asynchronous requests (agent data, mail, HTTP, remote data), listen on
chat channels and run sensors; answers arrive later as events.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/simscript/config.yaml)")
	pf.String("log-format", "json", "log format (json or text)")
	pf.String("database-url", "", "PostgreSQL URL for the agent directory (default: $DATABASE_URL)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig layers the config file and the command's flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	logging.SetDefault(logging.Options{Service: "simscript", Version: version, Format: cfg.LogFormat})
	return cfg, nil
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("simscript %s\n", version)
			cmd.Printf("  commit: %s\n", commit)
			cmd.Printf("  built:  %s\n", date)
		},
	}
}
