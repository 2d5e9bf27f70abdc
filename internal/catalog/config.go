package catalog

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// validateConfig checks the invariants spec.md §3 requires of a Config:
// the port must be in 1..=65535 and the address must parse as an IP.
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if cfg.ServerPort == 0 {
		return fmt.Errorf("%w: server_port must be in 1..=65535, got 0", ErrInvalidConfig)
	}
	if cfg.ClientName == "" {
		return fmt.Errorf("%w: client_name must not be empty", ErrInvalidConfig)
	}
	if net.ParseIP(cfg.ServerAddress) == nil {
		return fmt.Errorf("%w: server_address %q does not parse as an IP", ErrInvalidConfig, cfg.ServerAddress)
	}
	return nil
}

// LoadConfig reads and validates a Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("catalog: decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig validates cfg and rewrites path atomically (write to a
// sibling temp file, then rename over the target). The catalog never
// appends; every mutation rewrites the whole file.
func SaveConfig(path string, cfg *Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: encode config: %w", err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("catalog: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("catalog: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("catalog: rename temp file: %w", err)
	}
	return nil
}
