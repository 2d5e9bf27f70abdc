package jobs

import (
	"sync"
	"time"

	"bmu/internal/metrics"
)

// shutdownJoinTimeout bounds how long StopAllWorkers waits for worker
// goroutines to exit. "Best-effort" per spec.md §4.1 — a worker stuck
// executing a job does not hang process shutdown forever.
const shutdownJoinTimeout = 5 * time.Second

// Pool is the elastic worker pool of spec.md §4.1: workers are
// long-lived, execute opaque job closures, grow on demand, and never
// shrink except on full shutdown (spec.md §9 Open Question — Drop must
// not block; callers invoke StopAllWorkers/GracefulExit before dropping).
type Pool struct {
	mu       sync.Mutex
	workers  []*worker
	dispatch chan Message // shared among every worker goroutine
	nextID   WorkerId

	wg      sync.WaitGroup
	logger  Logger
	metrics metrics.Provider

	availableGauge metrics.Gauge
	dispatchedCtr  metrics.Counter
	jobDuration    metrics.Histogram
}

// NewPool preallocates size workers (size may be 0) but does not start
// their threads; call StartAllStoppedWorkers or Execute/CreateWorkers to
// bring them online.
func NewPool(size int, logger Logger, provider metrics.Provider) *Pool {
	if logger == nil {
		logger = NoopLogger
	}
	if provider == nil {
		provider = metrics.Noop{}
	}

	p := &Pool{
		dispatch: make(chan Message),
		logger:   logger,
		metrics:  provider,

		availableGauge: provider.Gauge("jobs_workers_available", "Workers currently idle and able to accept a job"),
		dispatchedCtr:  provider.Counter("jobs_dispatched_total", "Total job closures dispatched to a worker"),
		jobDuration:    provider.Histogram("jobs_duration_seconds", "Wall-clock duration of a dispatched job closure"),
	}

	for i := 0; i < size; i++ {
		p.workers = append(p.workers, newWorker(p.nextID))
		p.nextID++
	}
	p.availableGauge.Set(float64(len(p.workers)))
	return p
}

// AvailableWorkers returns the number of workers whose availability flag
// is true, independent of whether their thread is currently running.
func (p *Pool) AvailableWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, w := range p.workers {
		if w.isAvailable() {
			n++
		}
	}
	return n
}

// Execute submits one job closure. If no worker is currently available,
// the pool grows by one; any idle-but-stopped worker is then started so
// the closure has somewhere to land, matching the "lazily on first use"
// start discipline of spec.md §4.1.
func (p *Pool) Execute(job Job) error {
	if p.AvailableWorkers() == 0 {
		p.CreateWorkers(1)
	} else {
		p.StartAllStoppedWorkers()
	}

	p.dispatch <- Message{Job: job}
	p.dispatchedCtr.Inc()
	return nil
}

// CreateWorkers adds and starts n new workers. n == 0 is a no-op that
// logs a warning (spec.md §4.1).
func (p *Pool) CreateWorkers(n int) {
	if n == 0 {
		p.logger.Warn("create_workers called with n=0")
		return
	}

	p.mu.Lock()
	added := make([]*worker, 0, n)
	for i := 0; i < n; i++ {
		w := newWorker(p.nextID)
		p.nextID++
		p.workers = append(p.workers, w)
		added = append(added, w)
	}
	p.availableGauge.Set(float64(len(p.workers)))
	p.mu.Unlock()

	for _, w := range added {
		p.startWorker(w)
	}
}

// StartAllStoppedWorkers starts the thread for every worker whose
// availability flag is true but whose thread is absent; used both by
// Execute's elasticity path and to resume a pool cleared by a prior
// StopAllWorkers.
func (p *Pool) StartAllStoppedWorkers() {
	p.mu.Lock()
	workers := make([]*worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	for _, w := range workers {
		if w.isAvailable() && !w.isRunning() {
			p.startWorker(w)
		}
	}
}

func (p *Pool) startWorker(w *worker) {
	// Prime the local channel with Start before the goroutine spawns so a
	// watch kernel's first local_receiver.recv() never blocks.
	w.local <- ActionStart
	w.setRunning(true)
	p.wg.Add(1)
	go p.runWorker(w)
}

// runWorker is the dispatch algorithm of spec.md §4.1: receive a
// Message, execute a New job to completion, or exit on a Terminate
// addressed to this worker. Messages addressed to another worker are
// dropped on the floor (spec.md §9 design note — a known race, kept
// deliberately; see DESIGN.md).
func (p *Pool) runWorker(w *worker) {
	defer p.wg.Done()

	for msg := range p.dispatch {
		if msg.IsTerminate {
			if msg.TerminateID == w.id {
				w.setAvailable(true)
				w.setRunning(false)
				return
			}
			continue
		}

		w.setAvailable(false)
		p.availableGauge.Set(float64(p.AvailableWorkers()))

		args := Arguments{ID: w.id, Local: w.local, Logger: p.logger}
		start := time.Now()
		msg.Job(args)
		p.jobDuration.Observe(time.Since(start).Seconds())

		w.setAvailable(true)
		p.availableGauge.Set(float64(p.AvailableWorkers()))
	}
}

// TerminateJob signals the worker's private local channel (not the
// shared dispatch channel) with Terminate, then runs onTrigger. It does
// not join: the caller's job closure must observe Terminate on its own
// and return (spec.md §4.1, §4.3).
func (p *Pool) TerminateJob(workerID WorkerId, onTrigger func()) error {
	p.mu.Lock()
	var target *worker
	for _, w := range p.workers {
		if w.id == workerID {
			target = w
			break
		}
	}
	p.mu.Unlock()

	if target == nil {
		return ErrWorkerNotFound
	}

	target.local <- ActionTerminate
	if onTrigger != nil {
		onTrigger()
	}
	return nil
}

// StopAllWorkers broadcasts Terminate(worker_id) for every worker on the
// shared dispatch channel and joins each thread best-effort.
func (p *Pool) StopAllWorkers() {
	p.mu.Lock()
	workers := make([]*worker, len(p.workers))
	copy(workers, p.workers)
	p.mu.Unlock()

	for _, w := range workers {
		if w.isRunning() {
			p.dispatch <- Message{IsTerminate: true, TerminateID: w.id}
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownJoinTimeout):
		p.logger.Warn("stop_all_workers: timed out waiting for worker threads to join")
	}
}

// Workers returns a snapshot of worker ids and their current
// availability, for status queries.
func (p *Pool) Workers() map[WorkerId]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[WorkerId]bool, len(p.workers))
	for _, w := range p.workers {
		out[w.id] = w.isAvailable()
	}
	return out
}
