// Package storage creates the local store and the status persistence as a
// matched pair for the configured storage type.
package storage

import (
	"context"
	"fmt"

	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
)

// Factory creates storage-dependent components as a family.
//
// The factory encapsulates the creation of:
// - Store: the pending queue, records, conflict log, failed changes and cursors
// - StatusPersistence: per-tenant sync status, nil when status is not persisted
//
// It also manages the lifecycle of storage resources (e.g., database connections).
type Factory interface {
	// CreateStore returns the local store. Repeated calls return the same store.
	CreateStore(ctx context.Context) (store.Store, error)

	// CreateStatusPersistence returns the status persistence, or nil
	CreateStatusPersistence() status.StatusPersistence

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type
func NewStorageFactory(cfg *config.Config) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeSQLite, config.StorageTypePostgres:
		return NewSQLFactory(cfg)
	case config.StorageTypeMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
