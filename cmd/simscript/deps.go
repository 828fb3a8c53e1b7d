// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/observability"
	"github.com/holomush/simscript/internal/store"
)

// RunDeps contains injectable dependencies for the run command.
// Nil fields use their default implementations.
type RunDeps struct {
	// DirectoryFactory opens the agent directory. The returned func releases it.
	// Default: Postgres when a database URL is set, otherwise in-memory.
	DirectoryFactory func(ctx context.Context, databaseURL string) (directory.Directory, func(), error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer

	// Signals lists the signals that stop the region.
	// Default: SIGINT and SIGTERM.
	Signals []os.Signal
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *RunDeps) withDefaults() *RunDeps {
	out := RunDeps{}
	if d != nil {
		out = *d
	}
	if out.DirectoryFactory == nil {
		out.DirectoryFactory = openDirectory
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, version, ready, registrars...)
		}
	}
	if out.Signals == nil {
		out.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &out
}

func openDirectory(ctx context.Context, databaseURL string) (directory.Directory, func(), error) {
	if databaseURL == "" {
		slog.Info("no database configured, using in-memory agent directory")
		return directory.NewMemory(), func() {}, nil
	}
	pool, err := store.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewAgentRepository(pool), pool.Close, nil
}
