//go:build !cgo || purego

package storage

// Pure Go SQLite for CGO_ENABLED=0 builds or -tags purego.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver backing SQLiteStorage.
	DriverName = "sqlite"
	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
