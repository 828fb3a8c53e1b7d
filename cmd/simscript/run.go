// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/config"
	"github.com/holomush/simscript/internal/region"
	"github.com/holomush/simscript/internal/script"
	"github.com/holomush/simscript/internal/transport"
	"github.com/holomush/simscript/internal/world"
	"github.com/holomush/simscript/internal/xdg"
	"github.com/holomush/simscript/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a region and run its scripts",
		Long: `Load every script under the scripts directory, start the region's
worker pool, sensor sweep and housekeeping, and serve metrics and health
probes until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runRegion(cmd.Context(), cmd, cfg, nil)
		},
	}

	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("scripts-dir", "", "directory of script bundles (default: XDG_DATA_HOME/simscript/scripts)")

	return cmd
}

// runRegion runs a region until ctx ends or a stop signal arrives.
func runRegion(ctx context.Context, cmd *cobra.Command, cfg config.Config, deps *RunDeps) error {
	deps = deps.withDefaults()
	started := time.Now()

	dir, closeDir, err := deps.DirectoryFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "open agent directory").Wrap(err)
	}
	defer closeDir()

	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}

	assets := asset.NewMemory()
	reg, err := region.New(cfg.Region(), region.Collaborators{
		Directory: dir,
		Mailer:    mailer,
		Remote:    transport.NewRemoteDataClient(cfg.RemoteConfig()),
		HTTP:      transport.NewWebClient(cfg.HTTP.Timeout, cfg.HTTP.UserAgent),
		Assets:    assets,
		Scene:     world.NewMemoryScene(),
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	scriptsDir := cfg.ScriptsDir
	if scriptsDir == "" {
		if scriptsDir, err = xdg.ScriptsDir(); err != nil {
			return err
		}
	}
	loaded, sourceBytes, err := startScripts(reg, assets, scriptsDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		reg.Run(ctx)
	}()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load, region.RegisterMetrics)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			cancel()
			<-runDone
			return oops.With("addr", cfg.MetricsAddr).Wrapf(err, "start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, deps.Signals...)
	defer signal.Stop(sigChan)

	ready.Store(true)
	cmd.Printf("Region started: %s scripts (%s of source) from %s\n",
		humanize.Comma(int64(loaded)), humanize.Bytes(uint64(sourceBytes)), scriptsDir)
	slog.Info("region ready", "scripts", loaded, "scripts_dir", scriptsDir)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	cancel()
	<-runDone
	stats := reg.Stats()
	reg.Close()

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	uptime := durafmt.Parse(time.Since(started).Truncate(time.Millisecond)).LimitFirstN(2)
	cmd.Printf("Region stopped after %s (%s requests still pending)\n", uptime, humanize.Comma(int64(stats.Pending)))
	slog.Info("shutdown complete", "uptime", time.Since(started).String())
	return nil
}

// startScripts loads the bundles under dir into reg. Bundles that fail to
// start are logged and skipped.
func startScripts(reg *region.Region, assets *asset.Memory, dir string) (loaded, sourceBytes int, err error) {
	bundles, err := script.LoadAll(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, b := range bundles {
		assets.Put(b.Spec.Ref.PartID, b.Inventory)
		if err := reg.AddScript(b.Spec); err != nil {
			errutil.LogError(slog.With("script", b.Spec.Name, "dir", b.Dir), "failed to start script", err)
			continue
		}
		loaded++
		sourceBytes += len(b.Spec.Source)
	}
	return loaded, sourceBytes, nil
}

func newMailer(cfg config.Config) (transport.Mailer, error) {
	if cfg.SMTP.Addr == "" {
		slog.Info("no SMTP relay configured, mail will be logged")
		return transport.NewLogMailer(slog.Default()), nil
	}
	m, err := transport.NewSMTPMailer(cfg.SMTPConfig())
	if err != nil {
		return nil, err
	}
	return m, nil
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
