package jobs

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy from spec.md §7. These are kinds,
// not distinct types: every job-engine error is a *Error carrying one
// of these.
type Kind int

const (
	KindConfig Kind = iota
	KindMissingConnection
	KindTransport
	KindSftp
	KindWatcher
	KindJobNotFound
	KindJobSend
	KindTerminate
	KindCatalog
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindMissingConnection:
		return "missing_connection"
	case KindTransport:
		return "transport"
	case KindSftp:
		return "sftp"
	case KindWatcher:
		return "watcher"
	case KindJobNotFound:
		return "job_not_found"
	case KindJobSend:
		return "job_send"
	case KindTerminate:
		return "terminate"
	case KindCatalog:
		return "catalog"
	default:
		return "io"
	}
}

// Error is the job engine's tagged error wrapper. It carries the error
// Kind and, when known, the job id it occurred against, following the
// same tagged-wrapper shape as the teacher's error_tagging.go.
type Error struct {
	kind  Kind
	jobID Id
	err   error
}

// NewError wraps err with kind and, optionally, a job id.
func NewError(kind Kind, jobID Id, err error) *Error {
	return &Error{kind: kind, jobID: jobID, err: err}
}

func (e *Error) Error() string {
	if e.jobID != "" {
		return fmt.Sprintf("jobs: %s: %s: %v", e.kind, e.jobID, e.err)
	}
	return fmt.Sprintf("jobs: %s: %v", e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's taxonomy kind.
func (e *Error) Kind() Kind { return e.kind }

// JobID returns the job id the error occurred against, if known.
func (e *Error) JobID() (Id, bool) { return e.jobID, e.jobID != "" }

// ErrIsKind reports whether err is a *Error of the given kind.
func ErrIsKind(err error, kind Kind) bool {
	var je *Error
	if errors.As(err, &je) {
		return je.kind == kind
	}
	return false
}

var (
	// ErrWorkerNotFound is returned by Pool.TerminateJob for an unknown worker id.
	ErrWorkerNotFound = errors.New("jobs: worker not found")
	// ErrJobQueueClosed reports a pool that has been shut down. Pool.Execute
	// does not return it: after StopAllWorkers, Execute restarts the
	// stopped workers and dispatches as usual.
	ErrJobQueueClosed = errors.New("jobs: pool is shut down")
)
