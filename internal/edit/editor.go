// Package edit is the entry point for local edits. Every create, update and
// delete made by the field application goes through the Editor, which updates
// the local record optimistically and queues a PendingChange for the next push.
package edit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
)

// ErrInvalidPayload is returned when a payload is not a JSON object
var ErrInvalidPayload = errors.New("payload must be a JSON object")

// Store is the subset of the local store the editor writes to
type Store interface {
	store.Queue
	store.Records
}

// Editor applies local edits and queues them for sync
type Editor struct {
	store  Store
	now    func() time.Time
	newID  func() string
	notify func(tenantID string)
}

// Option configures an Editor
type Option func(*Editor)

// WithClock overrides the clock used for UpdatedAt and CreatedAt
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how idempotency keys and temporary ids are generated
func WithIDGenerator(newID func() string) Option {
	return func(e *Editor) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithNotifier registers a callback invoked after every queued edit,
// typically a coordinator trigger
func WithNotifier(notify func(tenantID string)) Option {
	return func(e *Editor) {
		e.notify = notify
	}
}

// New creates an Editor on top of st
func New(st Store, opts ...Option) *Editor {
	e := &Editor{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create stores a new record under a temporary id and queues its creation.
// The record is re-keyed to the server id once the create is synced.
func (e *Editor) Create(
	ctx context.Context, tenantID, entity string, payload json.RawMessage,
) (*domain.Record, error) {
	if err := validateTarget(tenantID, entity); err != nil {
		return nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	rec := &domain.Record{
		ID:        domain.TempIDPrefix + e.newID(),
		TenantID:  tenantID,
		Entity:    entity,
		Payload:   payload,
		UpdatedAt: now,
	}
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store new record: %w", err)
	}
	if err := e.enqueue(ctx, rec, domain.ActionCreate, now); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces the payload of an existing record and queues the change.
// The change is based on the last version the server confirmed.
func (e *Editor) Update(
	ctx context.Context, tenantID, entity, id string, payload json.RawMessage,
) (*domain.Record, error) {
	if err := validateTarget(tenantID, entity); err != nil {
		return nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	rec, err := e.store.GetRecord(ctx, tenantID, entity, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", entity, id, err)
	}
	if rec.Deleted {
		return nil, fmt.Errorf("%s/%s is deleted: %w", entity, id, store.ErrNotFound)
	}

	now := e.now().UTC()
	rec.Payload = payload
	rec.UpdatedAt = now
	rec.Synced = false
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if err := e.enqueue(ctx, rec, domain.ActionUpdate, now); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete marks a record deleted locally and queues the deletion. The local
// tombstone is removed once the server confirms the delete.
func (e *Editor) Delete(ctx context.Context, tenantID, entity, id string) error {
	if err := validateTarget(tenantID, entity); err != nil {
		return err
	}

	rec, err := e.store.GetRecord(ctx, tenantID, entity, id)
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", entity, id, err)
	}
	if rec.Deleted {
		return nil
	}

	now := e.now().UTC()
	rec.Deleted = true
	rec.UpdatedAt = now
	rec.Synced = false
	if err := e.store.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to store tombstone: %w", err)
	}
	return e.enqueue(ctx, rec, domain.ActionDelete, now)
}

func (e *Editor) enqueue(ctx context.Context, rec *domain.Record, action domain.Action, now time.Time) error {
	change := &domain.PendingChange{
		ClientChangeID: e.newID(),
		TenantID:       rec.TenantID,
		Entity:         rec.Entity,
		EntityID:       rec.ID,
		Action:         action,
		BaseUpdatedAt:  rec.BaseUpdatedAt,
		CreatedAt:      now,
	}
	if action != domain.ActionDelete {
		change.Payload = rec.Payload
	}

	if _, err := e.store.Enqueue(ctx, change); err != nil {
		return fmt.Errorf("failed to queue %s of %s/%s: %w", action, rec.Entity, rec.ID, err)
	}
	slog.Debug("Queued local change",
		"tenant", rec.TenantID,
		"entity", rec.Entity,
		"id", rec.ID,
		"action", action,
		"client_change_id", change.ClientChangeID)

	if e.notify != nil {
		e.notify(rec.TenantID)
	}
	return nil
}

func validateTarget(tenantID, entity string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if entity == "" {
		return fmt.Errorf("entity is required")
	}
	return nil
}

func validatePayload(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidPayload
	}
	return nil
}
