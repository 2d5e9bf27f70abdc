package jobs

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bmu/internal/catalog"
)

// sentinelFileName is created then immediately removed under a watch
// root to force one more filesystem event through a blocked watcher
// receive, per spec.md §4.3's cancellation trick. The mirror kernel
// never treats changes to this name as a real change.
const sentinelFileName = ".bmu_event_trigger"

// extensionBlacklist skips editor/IDE swap files that would otherwise
// trigger a spurious retransfer; "sb" matches Sublime Text's autosave
// backup suffix, the one case the original kernel filtered.
var extensionBlacklist = map[string]bool{"sb": true}

// EntityOnChange runs the continuous watch-and-mirror kernel of
// spec.md §4.3: watch the client entity, retransfer on create/rename
// and infer deletion when a watched path disappears, until signaled on
// the worker's local channel. It returns the sentinel-trigger function
// the caller must pass to Pool.TerminateJob to cancel the job.
func EntityOnChange(ctx context.Context, pool *Pool, watcher Watcher, transport Transport, regs *Registries, cfg catalog.Config, backup Backup) (trigger func(), err error) {
	if !transport.IsOpen() {
		return nil, NewError(KindMissingConnection, "", errNoConnection)
	}

	watchRoot := watchRootFor(backup)
	events, errs, closer, err := watcher.Watch(watchRoot)
	if err != nil {
		return nil, NewError(KindWatcher, "", err)
	}

	id := IDFromBackup(backup, KindBackupOnChange)
	regs.Failed.Delete(id)

	var lastModified time.Time
	if info, statErr := os.Stat(backup.ClientLocation.Path); statErr == nil {
		lastModified = info.ModTime()
	}

	dispatchErr := pool.Execute(func(args Arguments) {
		regs.Running.Set(id, args.ID)
		defer func() {
			regs.Running.Delete(id)
			_ = closer.Close()
		}()

		args.Logger.Info("watching for changes", F("job_id", id), F("root", watchRoot))

		for {
			action := <-args.Local
			if action == ActionTerminate {
				args.Logger.Info("watch kernel terminated", F("job_id", id))
				return
			}

			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				mirrorEvent(ctx, evt, watchRoot, backup, cfg, transport, &lastModified, args.Logger, id, regs)
			case werr, ok := <-errs:
				if !ok {
					return
				}
				if IsNotFound(werr) {
					mirrorDeletion(ctx, backup.ClientLocation.Path, watchRoot, backup, cfg, transport, args.Logger, id, regs)
				} else {
					args.Logger.Warn("watcher error", F("job_id", id), F("error", werr.Error()))
				}
			}

			args.Local <- ActionContinue
		}
	})
	if dispatchErr != nil {
		_ = closer.Close()
		return nil, dispatchErr
	}

	return sentinelTrigger(watchRoot), nil
}

// watchRootFor returns the directory to watch: the entity itself for a
// directory backup, its parent for a single file (spec.md §4.3 — a
// lone file has no directory of its own to watch).
func watchRootFor(backup Backup) string {
	if backup.Kind == catalog.KindDirectory {
		return backup.ClientLocation.Path
	}
	return filepath.Dir(backup.ClientLocation.Path)
}

// sentinelTrigger returns the onTrigger callback Pool.TerminateJob
// invokes after signaling the worker's local channel: create then
// delete a sentinel file under root so a kernel blocked on its watcher
// receive wakes up and observes the pending Terminate action.
func sentinelTrigger(root string) func() {
	return func() {
		p := filepath.Join(root, sentinelFileName)
		f, err := os.Create(p)
		if err != nil {
			return
		}
		_ = f.Close()
		_ = os.Remove(p)
	}
}

func mirrorEvent(ctx context.Context, evt WatchEvent, watchRoot string, backup Backup, cfg catalog.Config, transport Transport, lastModified *time.Time, logger Logger, id Id, regs *Registries) {
	// A native Remove event is an unambiguous deletion signal — prefer
	// it over the os.Stat/NotExist race below (spec.md §9).
	if evt.Kind == EventRemove {
		for _, p := range evt.Paths {
			mirrorDeletion(ctx, p, watchRoot, backup, cfg, transport, logger, id, regs)
		}
		return
	}

	if evt.Kind != EventCreate && evt.Kind != EventModifyName {
		return
	}

	for _, p := range evt.Paths {
		if !relevantPath(p, backup) {
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				mirrorDeletion(ctx, p, watchRoot, backup, cfg, transport, logger, id, regs)
			}
			continue
		}

		// The "already up to date" check reads the watch root's own
		// modification time, not the changed entity's — a directory
		// receiving several files in one burst only needs to be
		// skipped once, and a single file's own mtime may predate or
		// postdate the root's depending on how it arrived.
		rootInfo, rootErr := os.Stat(watchRoot)
		if rootErr == nil && !rootInfo.ModTime().After(*lastModified) {
			continue
		}
		*lastModified = info.ModTime()

		dst := mirrorDestination(p, watchRoot, backup, cfg)
		err = transport.Push(ctx, p, dst, PushOptions{
			StripLeadingComponent: !backup.Options.UseClientDirectory,
			IsDir:                 info.IsDir(),
		})
		if err != nil {
			logger.Error("mirror push failed", F("job_id", id), F("path", p), F("error", err.Error()))
			regs.Failed.Set(id, 0)
			continue
		}
		regs.Failed.Delete(id)
		logger.Info("mirror push completed", F("job_id", id), F("path", p))
	}
}

func mirrorDeletion(ctx context.Context, p, watchRoot string, backup Backup, cfg catalog.Config, transport Transport, logger Logger, id Id, regs *Registries) {
	if !relevantPath(p, backup) {
		return
	}

	dst := mirrorDestination(p, watchRoot, backup, cfg)
	base := serverDestination(backup, cfg.ClientName)
	if dst == base {
		// Never delete the backup's own server root on an inferred
		// deletion of the watch root itself.
		return
	}

	if err := transport.Delete(ctx, dst); err != nil {
		logger.Error("mirror delete failed", F("job_id", id), F("path", p), F("error", err.Error()))
		regs.Failed.Set(id, 0)
		return
	}
	regs.Failed.Delete(id)
	logger.Info("mirror delete completed", F("job_id", id), F("path", p))
}

// relevantPath filters out the sentinel file, hidden files, and
// blacklisted extensions, and (for a file backup) any path other than
// the one watched file itself.
func relevantPath(p string, backup Backup) bool {
	base := filepath.Base(p)
	if base == sentinelFileName {
		return false
	}
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	if extensionBlacklist[ext] {
		return false
	}
	if backup.Kind != catalog.KindDirectory {
		return filepath.Clean(p) == filepath.Clean(backup.ClientLocation.Path)
	}
	return true
}

// mirrorDestination maps a changed client path onto its server-side
// counterpart, preserving the path relative to the watched entity.
func mirrorDestination(p, watchRoot string, backup Backup, cfg catalog.Config) string {
	base := serverDestination(backup, cfg.ClientName)
	if backup.Kind != catalog.KindDirectory {
		return base
	}

	rel, err := filepath.Rel(backup.ClientLocation.Path, p)
	if err != nil || rel == "." {
		return base
	}
	return path.Join(base, filepath.ToSlash(rel))
}
