// Package catalog holds the data model shared by both sides of a backup
// (client and server locations), the on-disk configuration, and the
// persisted catalog of declared backups.
package catalog

import "time"

// Location is one side (client or server) of a backup.
type Location struct {
	EntityName string `json:"entity_name"`
	Path       string `json:"path"`
}

// BackupKind distinguishes a single file from a directory tree. It is
// stored on the Backup and persisted with it; the job kernels read it
// from there and do not re-derive it from the client path.
type BackupKind int

const (
	KindFile BackupKind = iota
	KindDirectory
)

func (k BackupKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Options controls how the client root maps onto the server side.
type Options struct {
	// UseClientDirectory mirrors the named root directory as-is on the
	// server when true. When false, the root directory's contents are
	// merged directly into the server location (the "rsync src/ dst"
	// strip-leading-component behavior).
	UseClientDirectory bool `json:"use_client_directory"`
}

// Backup is a declared client path -> server path mapping plus options.
// Identity for dedup and job IDs is the pair
// (ClientLocation.Path, ServerLocation.Path).
type Backup struct {
	Kind           BackupKind `json:"kind"`
	ClientLocation Location   `json:"client_location"`
	ServerLocation Location   `json:"server_location"`
	Options        Options    `json:"options"`
	LatestRun      *time.Time `json:"latest_run,omitempty"`
}

// IdentityKey is the dedup/job-id key for a backup.
func (b Backup) IdentityKey() string {
	return b.ClientLocation.Path + "_" + b.ServerLocation.Path
}

// Config holds connection and client identity settings.
type Config struct {
	ClientName            string `json:"client_name"`
	Username              string `json:"username"`
	ServerAddress         string `json:"server_address"`
	ServerPort            uint16 `json:"server_port"`
	AllowBackgroundBackup bool   `json:"allow_background_backup"`
}
