package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bmu/internal/metrics"
)

func TestPool_ExecuteGrowsPoolWhenNoWorkerAvailable(t *testing.T) {
	pool := NewPool(0, nil, metrics.Noop{})
	require.Equal(t, 0, pool.AvailableWorkers())

	done := make(chan struct{})
	err := pool.Execute(func(Arguments) { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestPool_ExecuteRunsEveryJobWithBoundedGrowth(t *testing.T) {
	pool := NewPool(1, nil, metrics.Noop{})

	var ran sync.WaitGroup
	ran.Add(3)
	for i := 0; i < 3; i++ {
		err := pool.Execute(func(Arguments) { ran.Done() })
		require.NoError(t, err)
	}

	waitOrTimeout(t, &ran)
	require.LessOrEqual(t, len(pool.workers), 3)
}

func TestPool_TerminateJobSignalsLocalChannelAndRunsTrigger(t *testing.T) {
	pool := NewPool(0, nil, metrics.Noop{})

	started := make(chan Arguments, 1)
	err := pool.Execute(func(args Arguments) {
		started <- args
		<-args.Local // consumes the Start the pool primed the channel with
	})
	require.NoError(t, err)

	var args Arguments
	select {
	case args = <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	triggered := make(chan struct{})
	err = pool.TerminateJob(args.ID, func() { close(triggered) })
	require.NoError(t, err)

	select {
	case <-triggered:
	case <-time.After(time.Second):
		t.Fatal("trigger never ran")
	}

	action := <-args.Local
	require.Equal(t, ActionTerminate, action)
}

func TestPool_TerminateJobUnknownWorker(t *testing.T) {
	pool := NewPool(1, nil, metrics.Noop{})
	err := pool.TerminateJob(999, nil)
	require.ErrorIs(t, err, ErrWorkerNotFound)
}

func TestPool_StopAllWorkersJoinsThreads(t *testing.T) {
	pool := NewPool(2, nil, metrics.Noop{})
	pool.StartAllStoppedWorkers()

	pool.StopAllWorkers()

	for _, w := range pool.workers {
		require.False(t, w.isRunning())
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs to complete")
	}
}
