//go:build cgo && !purego

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver backing SQLiteStorage.
	DriverName = "sqlite3"
	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
