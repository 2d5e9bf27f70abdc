package jobs

import (
	"context"

	"bmu/internal/catalog"
)

// PushOptions controls how Transport.Push maps a client root onto the
// server side; it mirrors catalog.Options plus the kind-derived flags
// the path algebra in spec.md §4.4 needs.
type PushOptions struct {
	// StripLeadingComponent merges the root directory's contents
	// directly into the destination (catalog.Options.UseClientDirectory
	// == false) instead of nesting under the root's own name.
	StripLeadingComponent bool
	IsDir                 bool
}

// Transport is the abstract capability surface the job engine consumes
// for the remote side of a backup: a single SSH session + SFTP channel,
// rsync-style push, remote recursive delete, and directory assertion.
// Stateless apart from the session handle it owns internally.
type Transport interface {
	// Open establishes the session + SFTP channel. Connection is either
	// unset or a fully open pair; a failed Open must leave no partial
	// state (spec.md §3 invariant).
	Open(ctx context.Context, cfg catalog.Config) error
	// Close tears down the SFTP channel and session, best-effort.
	Close() error
	// IsOpen reports whether a connection pair is currently held.
	IsOpen() bool
	// EnsureDir asserts that a server-side directory exists, creating
	// it if missing (SFTP open; on failure, SFTP create-dir).
	EnsureDir(ctx context.Context, path string) error
	// Push mirrors src (client-side) onto dst (server-side path,
	// without the client_name/hostname prefixing the caller already
	// applied) using the rsync-equivalent semantics of spec.md §6.
	Push(ctx context.Context, src, dst string, opts PushOptions) error
	// Delete removes dst (server-side path) recursively, equivalent to
	// `ssh ... rm -rf dst`.
	Delete(ctx context.Context, dst string) error
}
