// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fancontrold/fancontrold/pkg/config"
	"github.com/fancontrold/fancontrold/pkg/detect"
	"github.com/fancontrold/fancontrold/pkg/engine"
	"github.com/fancontrold/fancontrold/pkg/gpu"
	"github.com/fancontrold/fancontrold/pkg/handlers"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/importjob"
	"github.com/fancontrold/fancontrold/pkg/log"
	"github.com/fancontrold/fancontrold/pkg/profilestore"
	"github.com/fancontrold/fancontrold/pkg/rpc"
	"github.com/fancontrold/fancontrold/pkg/telemetry"
	"github.com/fancontrold/fancontrold/service/orchestrator"
)

func main() {
	configPath := flag.String("config", "~/.config/fancontrold/fancontrold.json", "path to the daemon's JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fancontrold: load config:", err)
		os.Exit(1)
	}

	logger := log.NewDefaultLogger(cfg.Logfile)
	log.SetGlobalLogger(logger)
	if cfg.Debug {
		logger = logger.With("debug", true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Pidfile != "" {
		if err := writePidfile(cfg.Pidfile); err != nil {
			logger.WarnContext(ctx, "failed to write pidfile, continuing anyway", "path", cfg.Pidfile, "error", err)
		} else {
			defer os.Remove(cfg.Pidfile)
		}
	}

	inv, err := hwmon.Scan(ctx, "")
	if err != nil {
		logger.ErrorContext(ctx, "failed to scan hwmon tree", "error", err)
		os.Exit(1)
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithFailureLogInterval(cfg.FailureLogTicks),
	)
	eng.SetView(inv)

	store := profilestore.New(cfg.ProfilesPath)
	if cfg.ProfileName != "" {
		if profile, err := store.Load(cfg.ProfileName); err != nil {
			logger.WarnContext(ctx, "failed to load configured profile, starting with no active profile", "profile", cfg.ProfileName, "error", err)
		} else if err := eng.ApplyProfile(ctx, profile); err != nil {
			logger.WarnContext(ctx, "configured profile failed validation, starting with no active profile", "profile", cfg.ProfileName, "error", err)
		} else {
			if err := eng.Enable(ctx); err != nil {
				logger.WarnContext(ctx, "failed to enable engine for configured profile", "error", err)
			}
			if err := store.SetActive(cfg.ProfileName); err != nil {
				logger.WarnContext(ctx, "failed to record configured profile as active", "profile", cfg.ProfileName, "error", err)
			}
		}
	}

	sampler := gpu.New(logger, gpu.NewNVIDIABackend, gpu.NewAMDBackend)
	defer sampler.Close()

	publisher := telemetry.NewPublisher(cfg.ShmPath, telemetryFilePath(cfg))

	importMgr := importjob.New(logger)
	importMgr.SetView(inv)

	detectMgr := detect.New(logger)
	detectMgr.SetView(inv)

	daemonCtl := handlers.NewDaemonControl(stop)

	registry := rpc.NewRegistry()
	handlers.Register(registry, handlers.Deps{
		Engine:      eng,
		Store:       store,
		Inventory:   inv,
		ImportMgr:   importMgr,
		DetectMgr:   detectMgr,
		GPUSampler:  sampler,
		ConfigState: handlers.NewConfigState(cfg, *configPath),
		Daemon:      daemonCtl,
		TickMs:      int(cfg.TickInterval / time.Millisecond),
	})

	server := rpc.NewServer(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), registry)

	orch := orchestrator.New(
		orchestrator.WithName("fancontrold"),
		orchestrator.WithLogger(logger),
		orchestrator.WithEngine(eng),
		orchestrator.WithInventory(inv),
		orchestrator.WithGPUSampler(sampler),
		orchestrator.WithPublisher(publisher),
		orchestrator.WithRPCServer(server),
		orchestrator.FromConfig(cfg),
	)

	if err := orch.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "orchestrator exited with error", "error", err)
		os.Exit(1)
	}
	if daemonCtl.RestartRequested() {
		logger.InfoContext(ctx, "restart requested over rpc, exiting for supervisor re-exec")
		os.Exit(exitRestartRequested)
	}
}

// exitRestartRequested is returned instead of 0 when "daemon.restart" (as
// opposed to "daemon.shutdown" or a signal) caused the daemon to stop, so
// a supervisor can tell a requested re-exec apart from a clean shutdown
// (§6).
const exitRestartRequested = 2

// telemetryFilePath derives the regular-file fallback telemetry.Publisher
// falls back to when /dev/shm is unavailable, keeping it beside the
// pidfile when one is configured.
func telemetryFilePath(cfg config.Config) string {
	if cfg.Pidfile != "" {
		return filepath.Join(filepath.Dir(cfg.Pidfile), "fancontrold-telemetry.json")
	}
	return "/var/lib/fancontrold/telemetry.json"
}

func writePidfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}
