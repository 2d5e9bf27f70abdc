// Package orchestrator is the single façade the CLI and daemon talk to:
// it owns the transport connection, the worker pool, the registries,
// and the persisted catalog, and sequences the job-engine operations of
// spec.md §4.6 against them.
package orchestrator

import (
	"context"
	"fmt"

	"bmu/internal/catalog"
	"bmu/internal/jobs"
	"bmu/internal/metrics"
)

// Agent bundles the job engine's moving parts behind the operations a
// caller needs: connect once, add/remove declared backups, run a
// one-shot transfer, start/stop background mirroring, and shut down.
type Agent struct {
	transport jobs.Transport
	watcher   jobs.Watcher
	catalog   *catalog.Catalog
	pool      *jobs.Pool
	regs      *jobs.Registries
	logger    jobs.Logger

	cfg catalog.Config

	triggers map[jobs.Id]func()
}

// New constructs an Agent. poolSize seeds the worker pool (0 is valid —
// workers are created lazily on first job).
func New(transport jobs.Transport, watcher jobs.Watcher, cat *catalog.Catalog, logger jobs.Logger, provider metrics.Provider, poolSize int) *Agent {
	if logger == nil {
		logger = jobs.NoopLogger
	}
	return &Agent{
		transport: transport,
		watcher:   watcher,
		catalog:   cat,
		pool:      jobs.NewPool(poolSize, logger, provider),
		regs:      jobs.NewRegistries(),
		logger:    logger,
		triggers:  make(map[jobs.Id]func()),
	}
}

// SetStateAndTestConnection opens the transport against cfg and keeps
// it open only if the handshake succeeds, matching
// set_state_and_test_connection's all-or-nothing contract.
func (a *Agent) SetStateAndTestConnection(ctx context.Context, cfg catalog.Config) error {
	if err := a.transport.Open(ctx, cfg); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// AddBackup records a new declared backup in the catalog and, if
// background mode is enabled, schedules its watch kernel immediately
// rather than waiting for the next daemon restart (spec.md §4.6: "On
// add, if background mode is on, schedule a watch job for the new
// backup").
func (a *Agent) AddBackup(ctx context.Context, backup catalog.Backup) error {
	if err := a.catalog.Add(backup); err != nil {
		return err
	}

	if !a.cfg.AllowBackgroundBackup {
		return nil
	}

	trigger, err := jobs.EntityOnChange(ctx, a.pool, a.watcher, a.transport, a.regs, a.cfg, backup)
	if err != nil {
		return fmt.Errorf("start background backup for %s: %w", backup.ClientLocation.Path, err)
	}
	id := jobs.IDFromBackup(backup, jobs.KindBackupOnChange)
	a.triggers[id] = trigger
	return nil
}

// DeleteBackup removes a declared backup and, if it is running in the
// background, terminates its watch kernel first.
func (a *Agent) DeleteBackup(backup catalog.Backup) error {
	id := jobs.IDFromBackup(backup, jobs.KindBackupOnChange)
	if err := a.TerminateBackgroundBackup(id); err != nil && !jobs.ErrIsKind(err, jobs.KindJobNotFound) {
		return err
	}
	return a.catalog.Delete(backup)
}

// RunBackup dispatches the one-shot transfer kernel for backup.
func (a *Agent) RunBackup(ctx context.Context, backup catalog.Backup) error {
	return jobs.EntityToServer(ctx, a.pool, a.transport, a.regs, a.cfg, backup)
}

// StartBackgroundBackups starts the watch-and-mirror kernel for every
// backup in backups, growing the pool first so every kernel gets its
// own worker (spec.md §4.1 invariant I3).
func (a *Agent) StartBackgroundBackups(ctx context.Context, backups []catalog.Backup) error {
	if need := len(backups) - a.pool.AvailableWorkers(); need > 0 {
		a.pool.CreateWorkers(need)
	}
	a.pool.StartAllStoppedWorkers()

	for _, backup := range backups {
		trigger, err := jobs.EntityOnChange(ctx, a.pool, a.watcher, a.transport, a.regs, a.cfg, backup)
		if err != nil {
			return fmt.Errorf("start background backup for %s: %w", backup.ClientLocation.Path, err)
		}
		id := jobs.IDFromBackup(backup, jobs.KindBackupOnChange)
		a.triggers[id] = trigger
	}
	return nil
}

// TerminateBackgroundBackup stops the watch kernel for the backup whose
// background-job id is given, mirroring terminate_job plus the
// sentinel-file trigger callback.
func (a *Agent) TerminateBackgroundBackup(id jobs.Id) error {
	workerID, ok := a.regs.Running.Get(id)
	if !ok {
		return jobs.NewError(jobs.KindJobNotFound, id, fmt.Errorf("no running background job"))
	}

	trigger := a.triggers[id]
	if err := a.pool.TerminateJob(workerID, trigger); err != nil {
		return jobs.NewError(jobs.KindTerminate, id, err)
	}
	delete(a.triggers, id)
	return nil
}

// TerminateAllBackgroundJobs stops every running watch kernel and
// clears the Running registry, mirroring terminate_all.
func (a *Agent) TerminateAllBackgroundJobs() {
	for id, workerID := range a.regs.Running.Snapshot() {
		trigger := a.triggers[id]
		if err := a.pool.TerminateJob(workerID, trigger); err != nil {
			a.logger.Warn("could not terminate background job", jobs.F("job_id", id), jobs.F("error", err.Error()))
		}
		delete(a.triggers, id)
	}
	a.regs.Running.Clear()
}

// Status reports the lifecycle state of a job id.
func (a *Agent) Status(id jobs.Id) jobs.Status {
	return jobs.CheckStatus(id, a.regs)
}

// GracefulExit closes the transport connection, then terminates every
// background job and stops the pool, in that order — matching
// graceful_exit's sequencing: the SFTP/session teardown happens first,
// and only then are the background kernels told to stop.
func (a *Agent) GracefulExit() {
	if a.transport.IsOpen() {
		if err := a.transport.Close(); err != nil {
			a.logger.Warn("error closing transport on exit", jobs.F("error", err.Error()))
		}
	}
	a.TerminateAllBackgroundJobs()
	a.pool.StopAllWorkers()
}
