// Package agentdir resolves the agent's on-disk layout via XDG base
// directories and implements the daemon control file protocol the CLI
// and the daemon process use to coordinate start/stop/restart.
package agentdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Dirs bundles every directory the agent reads or writes.
type Dirs struct {
	Cache  string
	Config string
	Data   string
	Log    string
}

// Load resolves Dirs under the "bmu" application namespace and creates
// any that do not yet exist.
func Load() (Dirs, error) {
	d := Dirs{
		Cache:  filepath.Join(xdg.CacheHome, "bmu"),
		Config: filepath.Join(xdg.ConfigHome, "bmu"),
		Data:   filepath.Join(xdg.DataHome, "bmu"),
		Log:    filepath.Join(xdg.StateHome, "bmu", "log"),
	}

	for _, dir := range []string{d.Cache, filepath.Join(d.Cache, "daemon"), d.Config, d.Data, d.Log} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Dirs{}, fmt.Errorf("agentdir: create %s: %w", dir, err)
		}
	}
	return d, nil
}

// ConfigPath is where the server/client config is persisted.
func (d Dirs) ConfigPath() string { return filepath.Join(d.Config, "server.conf.json") }

// CatalogPath is where the declared backup set is persisted.
func (d Dirs) CatalogPath() string { return filepath.Join(d.Data, "backups.json") }

// KnownHostsPath is the known_hosts file used to verify the server's
// host key.
func (d Dirs) KnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(d.Config, "known_hosts")
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// controlFilePath is the single-word state file the daemon polls and
// the CLI writes, mirroring the original daemon's "state" file. It lives
// in daemon/ under the cache directory.
func (d Dirs) controlFilePath() string { return filepath.Join(d.Cache, "daemon", "state") }

// ControlState is the daemon's externally observable lifecycle state.
type ControlState string

const (
	StateRunning   ControlState = "running"
	StateTerminate ControlState = "terminate"
	StateStopped   ControlState = "stopped"
)

// WriteState overwrites the control file with state.
func (d Dirs) WriteState(state ControlState) error {
	return os.WriteFile(d.controlFilePath(), []byte(state), 0o600)
}

// ReadState returns the current control state; a missing or unreadable
// file reads as StateStopped, matching the original's unwrap_or_default
// on an empty string falling through every "==" check.
func (d Dirs) ReadState() ControlState {
	b, err := os.ReadFile(d.controlFilePath())
	if err != nil {
		return StateStopped
	}
	s := ControlState(strings.TrimSpace(string(b)))
	switch s {
	case StateRunning, StateTerminate, StateStopped:
		return s
	default:
		return StateStopped
	}
}

// PIDFilePath is where the daemonized process records its PID.
func (d Dirs) PIDFilePath() string { return filepath.Join(d.Data, "bmud.pid") }
