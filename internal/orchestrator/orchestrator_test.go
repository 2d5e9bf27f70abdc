package orchestrator

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bmu/internal/catalog"
	"bmu/internal/jobs"
	"bmu/internal/metrics"
)

type fakeTransport struct {
	mu   sync.Mutex
	open bool
}

func (f *fakeTransport) Open(context.Context, catalog.Config) error { f.open = true; return nil }
func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}
func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}
func (f *fakeTransport) EnsureDir(context.Context, string) error { return nil }
func (f *fakeTransport) Push(context.Context, string, string, jobs.PushOptions) error {
	return nil
}
func (f *fakeTransport) Delete(context.Context, string) error { return nil }

var _ jobs.Transport = (*fakeTransport)(nil)

type fakeCloser struct{ closed bool }

func (c *fakeCloser) Close() error { c.closed = true; return nil }

// fakeWatcher hands back a fresh event/error pair per watch root that
// fires only when the test calls nudge. There is no real filesystem
// behind it, so the sentinel trigger's file never produces an event and
// a started kernel stays blocked until it is nudged.
type fakeWatcher struct {
	mu      sync.Mutex
	watches map[string]chan jobs.WatchEvent
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{watches: make(map[string]chan jobs.WatchEvent)}
}

func (w *fakeWatcher) Watch(root string) (<-chan jobs.WatchEvent, <-chan error, jobs.WatchCloser, error) {
	events := make(chan jobs.WatchEvent, 1)
	w.mu.Lock()
	w.watches[root] = events
	w.mu.Unlock()
	return events, make(chan error), &fakeCloser{}, nil
}

// nudge wakes a kernel blocked on its watcher receive with a harmless
// event, the same role a real watcher's sentinel-file event plays —
// TerminateJob's onTrigger has nothing real to observe against a fake
// watcher, so the test plays that part instead.
func (w *fakeWatcher) nudge(root string) {
	w.mu.Lock()
	events := w.watches[root]
	w.mu.Unlock()
	if events == nil {
		return
	}
	select {
	case events <- jobs.WatchEvent{Kind: jobs.EventOther}:
	default:
	}
}

var _ jobs.Watcher = (*fakeWatcher)(nil)

func newTestAgent(t *testing.T, tr *fakeTransport, w *fakeWatcher) *Agent {
	t.Helper()
	cat, err := catalog.LoadCatalog(filepath.Join(t.TempDir(), "catalog.json"))
	require.NoError(t, err)

	agent := New(tr, w, cat, jobs.NoopLogger, metrics.Noop{}, 2)
	agent.cfg = catalog.Config{ClientName: "alice", AllowBackgroundBackup: true}
	return agent
}

func testBackup(t *testing.T) catalog.Backup {
	t.Helper()
	return catalog.Backup{
		Kind:           catalog.KindDirectory,
		ClientLocation: catalog.Location{EntityName: "docs", Path: t.TempDir()},
		ServerLocation: catalog.Location{EntityName: "docs", Path: "/srv/backups"},
		Options:        catalog.Options{UseClientDirectory: true},
	}
}

// Scenario 4: a running background backup can be cancelled and leaves
// Running within a bound.
func TestAddBackup_SchedulesWatchAndCancels(t *testing.T) {
	tr := &fakeTransport{open: true}
	w := newFakeWatcher()
	agent := newTestAgent(t, tr, w)
	backup := testBackup(t)

	require.NoError(t, agent.AddBackup(context.Background(), backup))

	id := jobs.IDFromBackup(backup, jobs.KindBackupOnChange)
	require.Eventually(t, func() bool {
		return agent.Status(id) == jobs.StatusRunning
	}, time.Second, 10*time.Millisecond)

	terminated := make(chan error, 1)
	go func() { terminated <- agent.TerminateBackgroundBackup(id) }()
	require.Eventually(t, func() bool {
		w.nudge(backup.ClientLocation.Path)
		return agent.Status(id) != jobs.StatusRunning
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, <-terminated)
}

// Scenario 6: TerminateAllBackgroundJobs signals every running watch
// kernel and leaves none in Running.
func TestTerminateAllBackgroundJobs_StopsEveryKernel(t *testing.T) {
	tr := &fakeTransport{open: true}
	w := newFakeWatcher()
	agent := newTestAgent(t, tr, w)

	backupA := testBackup(t)
	backupB := testBackup(t)
	require.NoError(t, agent.AddBackup(context.Background(), backupA))
	require.NoError(t, agent.AddBackup(context.Background(), backupB))

	idA := jobs.IDFromBackup(backupA, jobs.KindBackupOnChange)
	idB := jobs.IDFromBackup(backupB, jobs.KindBackupOnChange)
	require.Eventually(t, func() bool {
		return agent.Status(idA) == jobs.StatusRunning && agent.Status(idB) == jobs.StatusRunning
	}, time.Second, 10*time.Millisecond)

	agent.TerminateAllBackgroundJobs()

	require.Eventually(t, func() bool {
		return agent.Status(idA) != jobs.StatusRunning && agent.Status(idB) != jobs.StatusRunning
	}, time.Second, 10*time.Millisecond)
}

// GracefulExit closes the transport and terminates background jobs;
// afterwards the transport is closed and the job is no longer Running.
func TestGracefulExit_ClosesTransportAndTerminatesJobs(t *testing.T) {
	tr := &fakeTransport{open: true}
	w := newFakeWatcher()
	agent := newTestAgent(t, tr, w)
	backup := testBackup(t)

	require.NoError(t, agent.AddBackup(context.Background(), backup))

	id := jobs.IDFromBackup(backup, jobs.KindBackupOnChange)
	require.Eventually(t, func() bool {
		return agent.Status(id) == jobs.StatusRunning
	}, time.Second, 10*time.Millisecond)

	// Play the watcher's part so the kernel can observe the Terminate
	// GracefulExit sends it and free its worker for StopAllWorkers.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				w.nudge(backup.ClientLocation.Path)
			}
		}
	}()
	agent.GracefulExit()
	close(stop)

	require.False(t, tr.IsOpen())
	require.NotEqual(t, jobs.StatusRunning, agent.Status(id))
}
