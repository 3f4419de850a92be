// Package memory provides an in-process Store. Nothing survives a restart;
// it backs tests and the "memory" storage type.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
)

type recordKey struct {
	tenant string
	entity string
	id     string
}

type cursorKey struct {
	tenant string
	entity string
}

// Store implements store.Store with maps guarded by a RWMutex.
// Values are copied on the way in and out.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	changes   []*domain.PendingChange
	changeIDs map[string]struct{}
	records   map[recordKey]*domain.Record
	conflicts []domain.ConflictLogEntry
	failed    []domain.FailedChange
	cursors   map[cursorKey]domain.Cursor
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		changeIDs: map[string]struct{}{},
		records:   map[recordKey]*domain.Record{},
		cursors:   map[cursorKey]domain.Cursor{},
	}
}

// Enqueue implements store.Queue
func (s *Store) Enqueue(_ context.Context, change *domain.PendingChange) (int64, error) {
	if change == nil {
		return 0, fmt.Errorf("change is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.changeIDs[change.ClientChangeID]; dup {
		return 0, fmt.Errorf("%w: %s", store.ErrDuplicateChange, change.ClientChangeID)
	}
	s.nextID++
	c := cloneChange(change)
	c.LocalID = s.nextID
	s.changes = append(s.changes, c)
	s.changeIDs[c.ClientChangeID] = struct{}{}
	change.LocalID = c.LocalID
	return c.LocalID, nil
}

// ListPending implements store.Queue
func (s *Store) ListPending(_ context.Context, tenantID string) ([]domain.PendingChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PendingChange, 0)
	for _, c := range s.changes {
		if c.TenantID == tenantID && !c.Synced {
			result = append(result, *cloneChange(c))
		}
	}
	return result, nil
}

// MarkConsumed implements store.Queue
func (s *Store) MarkConsumed(_ context.Context, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.changes {
		if c.LocalID == localID {
			c.Synced = true
			return nil
		}
	}
	return fmt.Errorf("pending change %d: %w", localID, store.ErrNotFound)
}

// RemapEntityID implements store.Queue
func (s *Store) RemapEntityID(_ context.Context, tenantID, entity, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.changes {
		if !c.Synced && c.TenantID == tenantID && c.Entity == entity && c.EntityID == oldID {
			c.EntityID = newID
		}
	}
	return nil
}

// GetRecord implements store.Records
func (s *Store) GetRecord(_ context.Context, tenantID, entity, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{tenantID, entity, id}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// PutRecord implements store.Records
func (s *Store) PutRecord(_ context.Context, record *domain.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record with an id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{record.TenantID, record.Entity, record.ID}] = record.Clone()
	return nil
}

// DeleteRecord implements store.Records
func (s *Store) DeleteRecord(_ context.Context, tenantID, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{tenantID, entity, id})
	return nil
}

// ListRecords implements store.Records
func (s *Store) ListRecords(_ context.Context, tenantID, entity string) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Record, 0)
	for key, rec := range s.records {
		if key.tenant == tenantID && key.entity == entity {
			result = append(result, *rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AppendConflict implements store.ConflictLog
func (s *Store) AppendConflict(_ context.Context, entry *domain.ConflictLogEntry) error {
	if entry == nil {
		return fmt.Errorf("conflict entry is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	e.ID = int64(len(s.conflicts) + 1)
	e.ClientVersion = entry.ClientVersion.Clone()
	e.ServerVersion = entry.ServerVersion.Clone()
	e.ResolvedVersion = entry.ResolvedVersion.Clone()
	s.conflicts = append(s.conflicts, e)
	entry.ID = e.ID
	return nil
}

// ListConflicts implements store.ConflictLog
func (s *Store) ListConflicts(_ context.Context, tenantID string, limit int) ([]domain.ConflictLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ConflictLogEntry, 0)
	for i := len(s.conflicts) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if s.conflicts[i].TenantID == tenantID {
			result = append(result, s.conflicts[i])
		}
	}
	return result, nil
}

// ParkFailed implements store.FailedChanges
func (s *Store) ParkFailed(_ context.Context, failed *domain.FailedChange) error {
	if failed == nil {
		return fmt.Errorf("failed change is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := *failed
	f.Change = *cloneChange(&failed.Change)
	s.failed = append(s.failed, f)
	return nil
}

// ListFailed implements store.FailedChanges
func (s *Store) ListFailed(_ context.Context, tenantID string) ([]domain.FailedChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.FailedChange, 0)
	for _, f := range s.failed {
		if f.Change.TenantID == tenantID {
			result = append(result, f)
		}
	}
	return result, nil
}

// GetCursor implements store.Cursors
func (s *Store) GetCursor(_ context.Context, tenantID, entity string) (domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[cursorKey{tenantID, entity}], nil
}

// SaveCursor implements store.Cursors
func (s *Store) SaveCursor(_ context.Context, tenantID, entity string, cursor domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursorKey{tenantID, entity}] = cursor
	return nil
}

// Close implements store.Store
func (*Store) Close() error {
	return nil
}

func cloneChange(c *domain.PendingChange) *domain.PendingChange {
	out := *c
	if c.Payload != nil {
		out.Payload = append([]byte(nil), c.Payload...)
	}
	if c.BaseUpdatedAt != nil {
		t := *c.BaseUpdatedAt
		out.BaseUpdatedAt = &t
	}
	return &out
}
