package jobs

import "sync"

// worker is a long-lived goroutine that runs one job at a time. It owns
// a private local ThreadAction channel used by watch kernels to
// arbitrate turn-taking (spec.md §4.2), and an availability flag
// flipped only by its own goroutine at job boundaries (spec.md §5).
type worker struct {
	id    WorkerId
	local chan ThreadAction

	mu        sync.Mutex
	available bool
	running   bool // goroutine currently looping on the shared dispatch channel
}

func newWorker(id WorkerId) *worker {
	return &worker{
		id:        id,
		local:     make(chan ThreadAction, 2),
		available: true,
	}
}

func (w *worker) isAvailable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.available
}

func (w *worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *worker) setAvailable(v bool) {
	w.mu.Lock()
	w.available = v
	w.mu.Unlock()
}

func (w *worker) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}
