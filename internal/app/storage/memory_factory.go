package storage

import (
	"context"

	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/store/memory"
)

// MemoryFactory keeps everything in process memory. Status is not persisted.
type MemoryFactory struct {
	store *memory.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates an in-memory storage factory
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{store: memory.New()}
}

// CreateStore returns the shared in-memory store
func (f *MemoryFactory) CreateStore(_ context.Context) (store.Store, error) {
	return f.store, nil
}

// CreateStatusPersistence returns nil: in-memory agents keep status in memory only
func (*MemoryFactory) CreateStatusPersistence() status.StatusPersistence {
	return nil
}

// Cleanup is a no-op
func (*MemoryFactory) Cleanup() {}
