package jobs

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bmu/internal/catalog"
	"bmu/internal/metrics"
)

// namespacedBackupID mirrors the id EntityToServer actually computes:
// from the backup's server path after client_name has been prepended.
func namespacedBackupID(backup Backup, clientName string) Id {
	namespaced := backup
	namespaced.ServerLocation.Path = path.Join(backup.ServerLocation.Path, clientName)
	return IDFromBackup(namespaced, KindBackup)
}

type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	pushes   []string
	deletes  []string
	pushErr  error
	dirsMade []string
}

func (f *fakeTransport) Open(context.Context, catalog.Config) error { f.open = true; return nil }
func (f *fakeTransport) Close() error                               { f.open = false; return nil }
func (f *fakeTransport) IsOpen() bool                                { return f.open }

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) EnsureDir(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirsMade = append(f.dirsMade, path)
	return nil
}

func (f *fakeTransport) Push(_ context.Context, _, dst string, _ PushOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, dst)
	return nil
}

func (f *fakeTransport) Delete(_ context.Context, dst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, dst)
	return nil
}

func newTestBackup() Backup {
	return Backup{
		Kind:           catalog.KindDirectory,
		ClientLocation: catalog.Location{EntityName: "docs", Path: "/home/alice/docs"},
		ServerLocation: catalog.Location{EntityName: "docs", Path: "/srv/backups"},
		Options:        catalog.Options{UseClientDirectory: true},
	}
}

func TestEntityToServer_PushesAndClearsFailedRecord(t *testing.T) {
	pool := NewPool(0, nil, metrics.Noop{})
	tr := &fakeTransport{open: true}
	regs := NewRegistries()
	backup := newTestBackup()
	cfg := catalog.Config{ClientName: "alice"}

	id := namespacedBackupID(backup, cfg.ClientName)
	regs.Failed.Set(id, 0)

	err := EntityToServer(context.Background(), pool, tr, regs, cfg, backup)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, stillRunning := regs.Running.Get(id)
		return !stillRunning && len(tr.pushes) == 1
	}, time.Second, 10*time.Millisecond)

	_, failed := regs.Failed.Get(id)
	require.False(t, failed)
	require.Equal(t, "/srv/backups/alice/docs", tr.pushes[0])
}

func TestEntityToServer_RequiresOpenTransport(t *testing.T) {
	pool := NewPool(0, nil, metrics.Noop{})
	tr := &fakeTransport{open: false}
	regs := NewRegistries()

	err := EntityToServer(context.Background(), pool, tr, regs, catalog.Config{}, newTestBackup())
	require.True(t, ErrIsKind(err, KindMissingConnection))
}

func TestEntityToServer_MovesToFailedOnPushError(t *testing.T) {
	pool := NewPool(0, nil, metrics.Noop{})
	tr := &fakeTransport{open: true, pushErr: context.DeadlineExceeded}
	regs := NewRegistries()
	backup := newTestBackup()

	err := EntityToServer(context.Background(), pool, tr, regs, catalog.Config{ClientName: "alice"}, backup)
	require.NoError(t, err)

	id := namespacedBackupID(backup, "alice")
	require.Eventually(t, func() bool {
		_, failed := regs.Failed.Get(id)
		return failed
	}, time.Second, 10*time.Millisecond)
}
