package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bmu/internal/agentdir"
	"bmu/internal/agentlog"
	"bmu/internal/catalog"
	"bmu/internal/metrics"
	"bmu/internal/orchestrator"
	"bmu/internal/transport"
	"bmu/internal/watch"
)

// pollInterval is how often the daemon loop checks the control file for
// a terminate request, matching the original daemon's 5-second poll.
const pollInterval = 5 * time.Second

// restartMaxAttempts bounds how long 'daemon restart' waits for the
// outgoing daemon to finish stopping before giving up.
const restartMaxAttempts = 10

// startDaemon runs the daemon loop in the foreground. Deployment
// supervises it (systemd, a process manager, or simply backgrounding
// the shell job) rather than the process double-forking itself — see
// DESIGN.md for why no self-daemonizing library is wired in.
func startDaemon(dirs agentdir.Dirs) error {
	cfg, err := catalog.LoadConfig(dirs.ConfigPath())
	if err != nil {
		return fmt.Errorf("no config detected, run the setup flow first: %w", err)
	}
	if !cfg.AllowBackgroundBackup {
		return fmt.Errorf("background backups are disabled in config")
	}

	cat, err := catalog.LoadCatalog(dirs.CatalogPath())
	if err != nil {
		return fmt.Errorf("could not load backups: %w", err)
	}

	zlog, err := agentlog.New(dirs.Log)
	if err != nil {
		return err
	}
	defer zlog.Sync() //nolint:errcheck
	logger := agentlog.Wrap(zlog)

	if err := os.WriteFile(dirs.PIDFilePath(), []byte(fmt.Sprintf("%d", os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := dirs.WriteState(agentdir.StateRunning); err != nil {
		return err
	}

	tr := transport.New(dirs.KnownHostsPath())
	wt := watch.New()
	agent := orchestrator.New(tr, wt, cat, logger, metrics.Noop{}, 0)

	ctx := context.Background()
	if err := agent.SetStateAndTestConnection(ctx, *cfg); err != nil {
		_ = dirs.WriteState(agentdir.StateStopped)
		return fmt.Errorf("could not connect to server: %w", err)
	}
	logger.Info("connected to server")

	if err := agent.StartBackgroundBackups(ctx, cat.All()); err != nil {
		_ = dirs.WriteState(agentdir.StateStopped)
		return fmt.Errorf("could not start background backups: %w", err)
	}

	for dirs.ReadState() != agentdir.StateTerminate {
		time.Sleep(pollInterval)
	}

	agent.GracefulExit()
	return dirs.WriteState(agentdir.StateStopped)
}

// waitForStop polls the control file until it reports stopped or
// restartMaxAttempts have elapsed, mirroring restart()'s retry loop.
func waitForStop(dirs agentdir.Dirs) error {
	for attempt := 0; attempt < restartMaxAttempts; attempt++ {
		if dirs.ReadState() == agentdir.StateStopped {
			return nil
		}
		time.Sleep(pollInterval)
	}
	if dirs.ReadState() != agentdir.StateStopped {
		return fmt.Errorf("could not restart daemon: previous instance did not stop in time")
	}
	return nil
}

// cleanDirs removes everything under the cache directory, including the
// daemon control file. The config, data (catalog) and log directories
// are untouched.
func cleanDirs(dirs agentdir.Dirs) error {
	entries, err := os.ReadDir(dirs.Cache)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(dirs.Cache + "/" + e.Name()); err != nil {
			return err
		}
	}
	fmt.Println("cache cleaned")
	return nil
}
