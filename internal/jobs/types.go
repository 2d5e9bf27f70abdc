// Package jobs is the job engine: a worker pool coordinating one-shot
// transfers and continuous watch-and-mirror jobs against a single
// transport connection, plus the registries that track their status.
package jobs

import "bmu/internal/catalog"

// Id is a deterministic job identifier. See IDFromBackup.
type Id = string

// WorkerId identifies a worker within a Pool. It is never reused.
type WorkerId = int

// Kind distinguishes the two job kernels a Backup can run as.
type Kind int

const (
	KindBackup Kind = iota
	KindBackupOnChange
)

// Status is the externally observable lifecycle state of a job id.
type Status int

const (
	StatusCompleted Status = iota
	StatusRunning
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	default:
		return "completed"
	}
}

// ThreadAction drives the inner loop of a watch kernel via a worker's
// private local channel.
type ThreadAction int

const (
	ActionStart ThreadAction = iota
	ActionContinue
	ActionTerminate
)

// Job is the opaque closure a Pool dispatches to a worker. It receives
// the Arguments bound to the worker that will run it.
type Job func(Arguments)

// Message is what flows over the pool's shared dispatch channel.
type Message struct {
	// Job is set for a New message; nil for a Terminate message.
	Job Job
	// TerminateID is the target worker id for a Terminate message.
	TerminateID WorkerId
	// IsTerminate distinguishes a Terminate message from New(nil-job).
	IsTerminate bool
}

// Arguments is handed to every job closure: its worker id and the
// worker's own local ThreadAction channel pair, used by watch kernels
// to arbitrate turn-taking (see mirror.go).
type Arguments struct {
	ID       WorkerId
	Local    chan ThreadAction
	Logger   Logger
}

// Backup is re-exported for callers that only import the jobs package.
type Backup = catalog.Backup
