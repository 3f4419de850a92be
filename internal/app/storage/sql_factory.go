package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/store/sqldb"
)

// SQLFactory creates a database-backed store, SQLite on device or Postgres
// on a shared depot box, with file-based status persistence.
type SQLFactory struct {
	config *config.Config

	mu    sync.Mutex
	store *sqldb.Store
}

var _ Factory = (*SQLFactory)(nil)

// NewSQLFactory creates a database-backed storage factory. The connection is
// opened lazily by CreateStore.
func NewSQLFactory(cfg *config.Config) (*SQLFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.GetStorageType() == config.StorageTypePostgres && cfg.Storage.Database == nil {
		return nil, fmt.Errorf("database configuration is required for postgres storage type")
	}
	return &SQLFactory{config: cfg}, nil
}

// CreateStore opens and migrates the database on first use
func (f *SQLFactory) CreateStore(ctx context.Context) (store.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil {
		return f.store, nil
	}

	var (
		s   *sqldb.Store
		err error
	)
	switch f.config.GetStorageType() {
	case config.StorageTypePostgres:
		slog.Debug("Opening postgres store")
		s, err = sqldb.OpenPostgres(ctx, f.config.Storage.Database)
	default:
		slog.Debug("Opening sqlite store", "path", f.config.GetSQLitePath())
		s, err = sqldb.OpenSQLite(ctx, f.config.GetSQLitePath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	f.store = s
	return s, nil
}

// CreateStatusPersistence returns file-based status persistence under the
// configured status directory
func (f *SQLFactory) CreateStatusPersistence() status.StatusPersistence {
	return status.NewFileStatusPersistence(f.config.GetStatusDir())
}

// Cleanup closes the database
func (f *SQLFactory) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return
	}
	slog.Info("Closing local store")
	if err := f.store.Close(); err != nil {
		slog.Error("Failed to close local store", "error", err)
	}
	f.store = nil
}
