// Package push delivers queued local changes to the server and applies the
// per-item outcomes to the local store.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/otel"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/resolver"
	"github.com/fieldops/fieldsync/internal/retry"
	"github.com/fieldops/fieldsync/internal/store"
)

// ReasonNeverCreated is recorded for edits of a temporary record whose create
// is no longer queued
const ReasonNeverCreated = "record was never created on the server"

// Store is the part of the local store the push engine needs
type Store interface {
	store.Queue
	store.Records
	store.ConflictLog
	store.FailedChanges
}

// Result summarises one push
type Result struct {
	// Synced counts changes the server accepted
	Synced int
	// Conflicts counts changes resolved through the conflict resolver
	Conflicts int
	// Rejected counts changes parked as failed, by the server or because
	// their record was never created
	Rejected int
	// Errors counts outcomes that could not be applied locally; those changes stay queued
	Errors int
	// Unresolved counts changes the server left out of its response; they stay queued
	Unresolved int
	// Deferred counts changes held back until an earlier create in the batch is confirmed
	Deferred int
	// Discarded counts deletes of records the server never saw, consumed locally
	Discarded int
	// Skipped is set when the server could not resolve the tenant and nothing was sent
	Skipped bool
}

// Remaining returns how many changes are still queued after this push
func (r *Result) Remaining() int {
	return r.Errors + r.Unresolved + r.Deferred
}

// Engine runs push cycles
type Engine struct {
	store    Store
	client   remote.Client
	retrier  *retry.Executor
	resolver resolver.Resolver
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithResolver overrides the conflict resolver
func WithResolver(r resolver.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithTracer records a span per push
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithClock overrides the clock used for FailedAt
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how client_change_ids of re-sent conflict winners are made
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// New creates a push engine
func New(st Store, client remote.Client, retrier *retry.Executor, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		client:   client,
		retrier:  retrier,
		resolver: resolver.NewLastWriterWins(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// batch is the request for one entity type with the changes it carries
type batch struct {
	entity  string
	changes map[string]domain.PendingChange
	req     *remote.PushRequest
}

// Push sends every pending change of tenantID, one request per entity type,
// and applies the server's verdict item by item. An error is returned only
// when a request fails after retries; per-item failures are counted in the
// result and leave the change queued.
func (e *Engine) Push(ctx context.Context, tenantID string) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.push",
		trace.WithAttributes(otel.AttrTenant.String(tenantID)))
	defer span.End()

	pending, err := e.store.ListPending(ctx, tenantID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}
	span.SetAttributes(otel.AttrPendingCount.Int(len(pending)))

	result := &Result{}
	if len(pending) == 0 {
		return result, nil
	}

	batches, err := e.plan(ctx, tenantID, pending, result)
	if err != nil {
		otel.RecordError(span, err)
		return result, err
	}

	for _, b := range batches {
		resp, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (*remote.PushResponse, error) {
			return e.client.Push(ctx, b.req)
		})
		if err != nil {
			if errors.Is(err, remote.ErrTenantNotResolved) {
				slog.Info("Server could not resolve tenant, skipping push", "tenant", tenantID)
				result.Skipped = true
				return result, nil
			}
			otel.RecordError(span, err)
			return result, fmt.Errorf("failed to push %s changes: %w", b.entity, err)
		}
		e.apply(ctx, tenantID, b, resp, result)
	}

	span.SetAttributes(
		otel.AttrSyncedCount.Int(result.Synced),
		otel.AttrConflictCount.Int(result.Conflicts),
		otel.AttrRejectedCount.Int(result.Rejected),
	)
	slog.Info("Push completed",
		"tenant", tenantID,
		"synced", result.Synced,
		"conflicts", result.Conflicts,
		"rejected", result.Rejected,
		"errors", result.Errors,
		"unresolved", result.Unresolved,
		"deferred", result.Deferred)
	return result, nil
}

// plan groups pending changes into one request per entity, in order of
// first appearance. Follow-up edits of a record whose create is still in
// flight are deferred, since the server cannot address them yet.
func (e *Engine) plan(
	ctx context.Context, tenantID string, pending []domain.PendingChange, result *Result,
) ([]*batch, error) {
	var batches []*batch
	byEntity := map[string]*batch{}
	creating := map[string]bool{}

	for _, c := range pending {
		key := c.Entity + "/" + c.EntityID
		if domain.IsTempID(c.EntityID) {
			switch {
			case creating[key]:
				result.Deferred++
				continue
			case c.Action == domain.ActionCreate:
				creating[key] = true
			case c.Action == domain.ActionDelete:
				if err := e.discard(ctx, c); err != nil {
					return nil, err
				}
				result.Discarded++
				continue
			default:
				// The create is gone from the queue, so the server has no id for this record
				if err := e.park(ctx, c, ReasonNeverCreated); err != nil {
					return nil, err
				}
				result.Rejected++
				continue
			}
		}

		b, ok := byEntity[c.Entity]
		if !ok {
			b = &batch{
				entity:  c.Entity,
				changes: map[string]domain.PendingChange{},
				req: &remote.PushRequest{
					TenantID: tenantID,
					Entity:   c.Entity,
					Changes:  map[string]remote.EntityChanges{},
				},
			}
			byEntity[c.Entity] = b
			batches = append(batches, b)
		}
		b.changes[c.ClientChangeID] = c

		group := b.req.Changes[c.Entity]
		if c.Action == domain.ActionDelete {
			group.Deletes = append(group.Deletes, remote.Delete{ClientChangeID: c.ClientChangeID, ID: c.EntityID})
		} else {
			up, err := e.upsert(ctx, c)
			if err != nil {
				return nil, err
			}
			group.Upserts = append(group.Upserts, up)
		}
		b.req.Changes[c.Entity] = group
	}

	for _, b := range batches {
		group := b.req.Changes[b.entity]
		if group.Upserts == nil {
			group.Upserts = []remote.Upsert{}
		}
		if group.Deletes == nil {
			group.Deletes = []remote.Delete{}
		}
		b.req.Changes[b.entity] = group
	}
	return batches, nil
}

func (e *Engine) upsert(ctx context.Context, c domain.PendingChange) (remote.Upsert, error) {
	id := c.EntityID
	if domain.IsTempID(id) {
		id = ""
	}

	base := c.BaseUpdatedAt
	if base == nil && id != "" {
		// Captured against a record that only had a temporary id; the
		// create has been confirmed since, so build on that version.
		rec, err := e.store.GetRecord(ctx, c.TenantID, c.Entity, id)
		switch {
		case err == nil:
			base = rec.BaseUpdatedAt
		case !errors.Is(err, store.ErrNotFound):
			return remote.Upsert{}, fmt.Errorf("failed to load %s/%s: %w", c.Entity, id, err)
		}
	}

	return remote.Upsert{
		ClientChangeID: c.ClientChangeID,
		ID:             id,
		BaseUpdatedAt:  base,
		NewValues: remote.Row{
			ID:        id,
			TenantID:  c.TenantID,
			UpdatedAt: c.CreatedAt,
			Fields:    c.Payload,
		},
	}, nil
}

// discard consumes a delete of a record the server never created
func (e *Engine) discard(ctx context.Context, c domain.PendingChange) error {
	if err := e.store.DeleteRecord(ctx, c.TenantID, c.Entity, c.EntityID); err != nil {
		return fmt.Errorf("failed to drop local record %s/%s: %w", c.Entity, c.EntityID, err)
	}
	if err := e.store.MarkConsumed(ctx, c.LocalID); err != nil {
		return fmt.Errorf("failed to consume change %s: %w", c.ClientChangeID, err)
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, tenantID string, b *batch, resp *remote.PushResponse, result *Result) {
	handled := make(map[string]bool, len(b.changes))

	each := func(changeID string, fn func(domain.PendingChange) error, counter *int) {
		c, ok := b.changes[changeID]
		if !ok {
			slog.Warn("Server answered for an unknown change",
				"tenant", tenantID, "entity", b.entity, "client_change_id", changeID)
			return
		}
		if handled[changeID] {
			return
		}
		handled[changeID] = true

		if err := fn(c); err != nil {
			slog.Error("Failed to apply push outcome",
				"tenant", tenantID,
				"entity", b.entity,
				"id", c.EntityID,
				"client_change_id", changeID,
				"error", err)
			result.Errors++
			return
		}
		*counter++
	}

	for _, item := range resp.Synced {
		each(item.ClientChangeID, func(c domain.PendingChange) error {
			return e.applySynced(ctx, c, item.Row)
		}, &result.Synced)
	}
	for _, item := range resp.Conflicts {
		each(item.ClientChangeID, func(c domain.PendingChange) error {
			return e.applyConflict(ctx, c, item)
		}, &result.Conflicts)
	}
	for _, item := range resp.Rejected {
		each(item.ClientChangeID, func(c domain.PendingChange) error {
			return e.applyRejected(ctx, c, item.Reason)
		}, &result.Rejected)
	}

	for id, c := range b.changes {
		if !handled[id] {
			slog.Warn("Server did not classify change, keeping it queued",
				"tenant", tenantID, "entity", b.entity, "id", c.EntityID, "client_change_id", id)
			result.Unresolved++
		}
	}
}

func (e *Engine) applySynced(ctx context.Context, c domain.PendingChange, row *remote.Row) error {
	if c.Action == domain.ActionDelete {
		if err := e.store.DeleteRecord(ctx, c.TenantID, c.Entity, c.EntityID); err != nil {
			return fmt.Errorf("failed to remove deleted record: %w", err)
		}
		return e.consume(ctx, c)
	}

	local, err := e.store.GetRecord(ctx, c.TenantID, c.Entity, c.EntityID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load local record: %w", err)
	}

	if row == nil {
		if local != nil && !local.UpdatedAt.After(c.CreatedAt) {
			local.Synced = true
			if err := e.store.PutRecord(ctx, local); err != nil {
				return fmt.Errorf("failed to mark record synced: %w", err)
			}
		}
		return e.consume(ctx, c)
	}

	canonical := row.ToRecord(c.Entity)
	if canonical.TenantID == "" {
		canonical.TenantID = c.TenantID
	}
	if canonical.ID == "" {
		canonical.ID = c.EntityID
	}

	next := canonical
	if local != nil && local.UpdatedAt.After(c.CreatedAt) {
		// A later local edit is still queued; keep its payload and only
		// take the confirmed identity and version.
		next = local
		next.ID = canonical.ID
		next.BaseUpdatedAt = canonical.BaseUpdatedAt
	}

	if err := e.store.PutRecord(ctx, next); err != nil {
		return fmt.Errorf("failed to store canonical record: %w", err)
	}

	if canonical.ID != c.EntityID {
		if err := e.store.DeleteRecord(ctx, c.TenantID, c.Entity, c.EntityID); err != nil {
			return fmt.Errorf("failed to drop temporary record: %w", err)
		}
		if err := e.store.RemapEntityID(ctx, c.TenantID, c.Entity, c.EntityID, canonical.ID); err != nil {
			return fmt.Errorf("failed to re-key queued changes: %w", err)
		}
		slog.Debug("Re-keyed created record", "tenant", c.TenantID, "entity", c.Entity,
			"temporary_id", c.EntityID, "id", canonical.ID)
	}
	return e.consume(ctx, c)
}

func (e *Engine) applyConflict(ctx context.Context, c domain.PendingChange, item remote.ConflictItem) error {
	id := item.ID
	if id == "" {
		id = c.EntityID
	}

	var client *domain.Record
	if item.Client != nil {
		client = item.Client.ToRecord(c.Entity)
		client.Synced = false
		client.BaseUpdatedAt = c.BaseUpdatedAt
	} else {
		local, err := e.store.GetRecord(ctx, c.TenantID, c.Entity, c.EntityID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load local record: %w", err)
		}
		client = local
	}
	if client != nil {
		client.ID = id
		if client.TenantID == "" {
			client.TenantID = c.TenantID
		}
	}

	server := item.Server.ToRecord(c.Entity)
	if server != nil && server.TenantID == "" {
		server.TenantID = c.TenantID
	}

	res := e.resolver.Resolve(client, server)
	entry := res.Entry
	entry.EntityType = c.Entity
	entry.EntityID = id
	entry.TenantID = c.TenantID

	var resend *domain.PendingChange
	if res.Winner != nil {
		winner := res.Winner
		if res.ClientWon() && server != nil {
			confirmed := server.UpdatedAt
			winner.BaseUpdatedAt = &confirmed
			winner.Synced = false
			if !domain.IsTempID(winner.ID) {
				resend = e.resend(c, winner)
			}
		}
		if err := e.store.PutRecord(ctx, winner); err != nil {
			return fmt.Errorf("failed to store resolved record: %w", err)
		}
	}
	if resend != nil {
		if _, err := e.store.Enqueue(ctx, resend); err != nil {
			return fmt.Errorf("failed to queue resolved version: %w", err)
		}
	}

	if err := e.store.AppendConflict(ctx, entry); err != nil {
		return fmt.Errorf("failed to append conflict log entry: %w", err)
	}
	slog.Info("Resolved push conflict",
		"tenant", c.TenantID, "entity", c.Entity, "id", id, "winner", res.Side)
	return e.consume(ctx, c)
}

// resend builds the change that carries a client-won resolution to the
// server. It is a new action against the server's current version.
func (e *Engine) resend(c domain.PendingChange, winner *domain.Record) *domain.PendingChange {
	action := domain.ActionUpdate
	if winner.Deleted {
		action = domain.ActionDelete
	}
	base := *winner.BaseUpdatedAt
	return &domain.PendingChange{
		ClientChangeID: e.newID(),
		TenantID:       c.TenantID,
		Entity:         c.Entity,
		EntityID:       winner.ID,
		Action:         action,
		Payload:        append(json.RawMessage(nil), winner.Payload...),
		BaseUpdatedAt:  &base,
		CreatedAt:      winner.UpdatedAt,
	}
}

func (e *Engine) applyRejected(ctx context.Context, c domain.PendingChange, reason string) error {
	if reason == "" {
		reason = "rejected by server"
	}
	return e.park(ctx, c, reason)
}

// park moves c to the failed-change list and consumes it
func (e *Engine) park(ctx context.Context, c domain.PendingChange, reason string) error {
	failed := &domain.FailedChange{
		Change:   c,
		Reason:   reason,
		FailedAt: e.now().UTC(),
	}
	if err := e.store.ParkFailed(ctx, failed); err != nil {
		return fmt.Errorf("failed to park change %s: %w", c.ClientChangeID, err)
	}
	slog.Warn("Parked failed change",
		"tenant", c.TenantID,
		"entity", c.Entity,
		"id", c.EntityID,
		"action", c.Action,
		"client_change_id", c.ClientChangeID,
		"reason", reason)
	return e.consume(ctx, c)
}

func (e *Engine) consume(ctx context.Context, c domain.PendingChange) error {
	if err := e.store.MarkConsumed(ctx, c.LocalID); err != nil {
		return fmt.Errorf("failed to consume change: %w", err)
	}
	return nil
}
