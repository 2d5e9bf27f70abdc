package catalog

import "errors"

var (
	// ErrDuplicate is returned by Catalog.Add when a backup with the same
	// (client path, server path) identity is already present.
	ErrDuplicate = errors.New("catalog: duplicate backup")

	// ErrNotFound is returned by Catalog.Delete when no backup matches.
	ErrNotFound = errors.New("catalog: backup not found")

	// ErrInvalidConfig is returned by validateConfig / SaveConfig.
	ErrInvalidConfig = errors.New("catalog: invalid configuration")
)
