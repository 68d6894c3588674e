package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Storage backends accepted by Open.
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Storage     string
	PromptsDir  string
	SQLitePath  string
	DatabaseURL string
	LockTimeout time.Duration
	Logger      *zap.Logger
}

// New returns an unconnected repository for opts.Storage.
func New(opts Options) (Database, error) {
	switch opts.Storage {
	case StorageFile, "":
		return NewFileStore(opts.PromptsDir, opts.LockTimeout, opts.Logger), nil
	case StorageSQLite:
		return NewSQLite(opts.SQLitePath, opts.Logger), nil
	case StoragePostgres:
		return NewPostgreSQL(opts.DatabaseURL, opts.Logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidInput, opts.Storage)
	}
}

// Open creates the repository for opts and connects it.
func Open(ctx context.Context, opts Options) (Database, error) {
	db, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect %s storage: %w", opts.Storage, err)
	}
	return db, nil
}
