package jobs

import (
	"context"
	"errors"
	"path"

	"bmu/internal/catalog"
)

// errNoConnection is wrapped into a KindMissingConnection *Error when a
// kernel is asked to transfer without an open Transport.
var errNoConnection = errors.New("transport is not open")

// EntityToServer runs the one-shot backup kernel of spec.md §4.2: push
// the whole client entity (file or directory tree) to the server once
// and return. It is grounded on the original entity_to_server kernel —
// ensure the per-client folder exists, compute the job id, clear any
// stale Failed record for that id, then dispatch a closure to the pool
// that tracks itself in Running for the duration of the transfer.
func EntityToServer(ctx context.Context, pool *Pool, transport Transport, regs *Registries, cfg catalog.Config, backup Backup) error {
	if !transport.IsOpen() {
		return NewError(KindMissingConnection, "", errNoConnection)
	}

	clientRoot := path.Join(backup.ServerLocation.Path, cfg.ClientName)
	if err := transport.EnsureDir(ctx, clientRoot); err != nil {
		return NewError(KindTransport, "", err)
	}

	// The job id is derived from the server path *after* client_name is
	// prepended, not the bare declared path, per the worked example in
	// spec.md §8 scenario 1.
	namespaced := backup
	namespaced.ServerLocation.Path = clientRoot
	id := IDFromBackup(namespaced, KindBackup)
	regs.Failed.Delete(id)

	dst := serverDestination(backup, cfg.ClientName)

	return pool.Execute(func(args Arguments) {
		regs.Running.Set(id, args.ID)
		defer regs.Running.Delete(id)

		err := transport.Push(ctx, backup.ClientLocation.Path, dst, PushOptions{
			StripLeadingComponent: !backup.Options.UseClientDirectory,
			IsDir:                 backup.Kind == catalog.KindDirectory,
		})
		if err != nil {
			args.Logger.Error("backup transfer failed", F("job_id", id), F("error", err.Error()))
			regs.Failed.Set(id, args.ID)
			return
		}
		args.Logger.Info("backup transfer completed", F("job_id", id))
	})
}

// serverDestination computes the server-side destination path for a
// backup per spec.md §4.4: nested under the entity name when
// UseClientDirectory is set, merged directly into the client folder
// otherwise.
func serverDestination(backup Backup, clientName string) string {
	base := path.Join(backup.ServerLocation.Path, clientName)
	if backup.Options.UseClientDirectory {
		return path.Join(base, backup.ClientLocation.EntityName)
	}
	return base
}
