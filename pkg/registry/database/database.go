// Package database provides the Database interface for prompt storage.
// This package re-exports the internal database interface to allow external
// implementations to wrap and extend the database layer.
package database

import (
	"context"

	internaldatabase "github.com/agentregistry-dev/promptregistry/internal/registry/database"
)

// Database is the interface for prompt storage operations.
type Database = internaldatabase.Database

// Backends and their construction options.
type (
	Options      = internaldatabase.Options
	StorageError = internaldatabase.StorageError
	PostgreSQL   = internaldatabase.PostgreSQL
	SQLite       = internaldatabase.SQLite
	FileStore    = internaldatabase.FileStore
)

const (
	StorageFile     = internaldatabase.StorageFile
	StorageSQLite   = internaldatabase.StorageSQLite
	StoragePostgres = internaldatabase.StoragePostgres
)

// Common database errors
var (
	ErrNotFound     = internaldatabase.ErrNotFound
	ErrInvalidInput = internaldatabase.ErrInvalidInput
	ErrConflict     = internaldatabase.ErrConflict
	ErrDatabase     = internaldatabase.ErrDatabase
	ErrNotConnected = internaldatabase.ErrNotConnected
	ErrLockTimeout  = internaldatabase.ErrLockTimeout
)

// Open creates and connects the backend selected by opts.Storage.
func Open(ctx context.Context, opts Options) (Database, error) {
	return internaldatabase.Open(ctx, opts)
}
