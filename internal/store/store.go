// Package store defines the local persistence used by the sync engine: the
// pending-change queue, the record mirror, the conflict log, parked failed
// changes and pull cursors.
package store

import (
	"context"
	"errors"

	"github.com/fieldops/fieldsync/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Queue,Records,ConflictLog,FailedChanges,Cursors,Store

// ErrNotFound is returned when a record or cursor does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateChange is returned when a client_change_id is enqueued twice
var ErrDuplicateChange = errors.New("duplicate client change id")

// Queue is the persistent queue of local edits
type Queue interface {
	// Enqueue stores change and assigns its LocalID
	Enqueue(ctx context.Context, change *domain.PendingChange) (int64, error)

	// ListPending returns unconsumed changes for a tenant in creation order
	ListPending(ctx context.Context, tenantID string) ([]domain.PendingChange, error)

	// MarkConsumed flags a change as done. Consuming twice is not an error.
	MarkConsumed(ctx context.Context, localID int64) error

	// RemapEntityID points pending changes at a temporary id to the canonical id
	RemapEntityID(ctx context.Context, tenantID, entity, oldID, newID string) error
}

// Records is the local mirror of server rows
type Records interface {
	// GetRecord returns ErrNotFound when the record is absent
	GetRecord(ctx context.Context, tenantID, entity, id string) (*domain.Record, error)

	// PutRecord inserts or replaces a record
	PutRecord(ctx context.Context, record *domain.Record) error

	// DeleteRecord removes a record. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, tenantID, entity, id string) error

	// ListRecords returns the records of one entity type ordered by id
	ListRecords(ctx context.Context, tenantID, entity string) ([]domain.Record, error)
}

// ConflictLog is the append-only audit trail of resolved conflicts
type ConflictLog interface {
	AppendConflict(ctx context.Context, entry *domain.ConflictLogEntry) error

	// ListConflicts returns the newest entries first. limit <= 0 means no limit.
	ListConflicts(ctx context.Context, tenantID string, limit int) ([]domain.ConflictLogEntry, error)
}

// FailedChanges keeps changes the server rejected permanently
type FailedChanges interface {
	ParkFailed(ctx context.Context, failed *domain.FailedChange) error
	ListFailed(ctx context.Context, tenantID string) ([]domain.FailedChange, error)
}

// Cursors persists pull watermarks per tenant and entity
type Cursors interface {
	// GetCursor returns the zero cursor when nothing was stored yet
	GetCursor(ctx context.Context, tenantID, entity string) (domain.Cursor, error)
	SaveCursor(ctx context.Context, tenantID, entity string, cursor domain.Cursor) error
}

// Store aggregates every local persistence concern
type Store interface {
	Queue
	Records
	ConflictLog
	FailedChanges
	Cursors

	// Close releases underlying resources
	Close() error
}
