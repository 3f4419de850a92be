// Package pull fetches remote changes since the stored cursor and merges them
// into the local record mirror.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/otel"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/resolver"
	"github.com/fieldops/fieldsync/internal/retry"
	"github.com/fieldops/fieldsync/internal/store"
)

const (
	// DefaultEntity is pulled when no entity list is configured
	DefaultEntity = "work_orders"
	// DefaultPageSize is the limit sent with every pull request
	DefaultPageSize = 100
	// DefaultMaxPages bounds the number of requests per entity and cycle
	DefaultMaxPages = 10
)

// Store is the part of the local store the pull engine needs
type Store interface {
	store.Records
	store.ConflictLog
	store.Cursors
}

// Result summarises one pull
type Result struct {
	// Inserted counts rows that were not known locally
	Inserted int
	// Updated counts rows that replaced a local record
	Updated int
	// Deleted counts local records removed by a remote tombstone
	Deleted int
	// Conflicts counts rows that overwrote or lost against unsynced local edits
	Conflicts int
	// Unchanged counts rows the local version already covered
	Unchanged int
	// Errors counts rows that could not be applied locally
	Errors int
	// Pages counts the requests that returned successfully
	Pages int
	// HasMore is set when an entity stopped at the page limit with a full page
	HasMore bool
	// Skipped is set when the server could not resolve the tenant
	Skipped bool
}

// Applied returns the number of rows that changed local state
func (r *Result) Applied() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Engine runs pull cycles for a fixed set of entity types
type Engine struct {
	store    Store
	client   remote.Client
	retrier  *retry.Executor
	resolver resolver.Resolver
	tracer   trace.Tracer
	entities []string
	pageSize int
	maxPages int
}

// Option configures an Engine
type Option func(*Engine)

// WithEntities sets the entity types pulled on every cycle, in order
func WithEntities(entities ...string) Option {
	return func(e *Engine) {
		if len(entities) > 0 {
			e.entities = append([]string(nil), entities...)
		}
	}
}

// WithPageSize sets the limit sent with each request
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMaxPages bounds how many pages are fetched per entity and cycle
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithResolver overrides the conflict resolver
func WithResolver(r resolver.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithTracer records a span per pull
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New creates a pull engine
func New(st Store, client remote.Client, retrier *retry.Executor, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		client:   client,
		retrier:  retrier,
		resolver: resolver.NewLastWriterWins(),
		entities: []string{DefaultEntity},
		pageSize: DefaultPageSize,
		maxPages: DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Entities returns the entity types this engine pulls
func (e *Engine) Entities() []string {
	return append([]string(nil), e.entities...)
}

// Pull fetches every configured entity for tenantID. The cursor of an
// entity is saved after each page, including empty ones, so an error in a
// later entity keeps the progress already made.
func (e *Engine) Pull(ctx context.Context, tenantID string) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.pull",
		trace.WithAttributes(otel.AttrTenant.String(tenantID)))
	defer span.End()

	result := &Result{}
	for _, entity := range e.entities {
		err := e.pullEntity(ctx, tenantID, entity, result)
		if errors.Is(err, remote.ErrTenantNotResolved) {
			slog.Info("Server could not resolve tenant, skipping pull", "tenant", tenantID)
			result.Skipped = true
			return result, nil
		}
		if err != nil {
			otel.RecordError(span, err)
			return result, err
		}
	}

	span.SetAttributes(
		otel.AttrRowCount.Int(result.Applied()),
		otel.AttrConflictCount.Int(result.Conflicts),
	)
	slog.Info("Pull completed",
		"tenant", tenantID,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"conflicts", result.Conflicts,
		"pages", result.Pages)
	return result, nil
}

func (e *Engine) pullEntity(ctx context.Context, tenantID, entity string, result *Result) (err error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.pull.entity",
		trace.WithAttributes(otel.AttrEntity.String(entity)))
	defer func() {
		if err != nil && !errors.Is(err, remote.ErrTenantNotResolved) {
			otel.RecordError(span, err)
		}
		span.End()
	}()

	cursor, err := e.store.GetCursor(ctx, tenantID, entity)
	if err != nil {
		return fmt.Errorf("failed to load %s cursor: %w", entity, err)
	}
	span.SetAttributes(otel.AttrHasCursor.Bool(!cursor.IsZero()))

	for page := 1; page <= e.maxPages; page++ {
		req := &remote.PullRequest{
			TenantID: tenantID,
			Entity:   entity,
			Since:    cursor,
			Limit:    e.pageSize,
		}
		resp, err := retry.Do(ctx, e.retrier, func(ctx context.Context) (*remote.PullResponse, error) {
			return e.client.Pull(ctx, req)
		})
		if err != nil {
			if errors.Is(err, remote.ErrTenantNotResolved) {
				return err
			}
			return fmt.Errorf("failed to pull %s changes: %w", entity, err)
		}
		result.Pages++

		for i := range resp.Data {
			if err := e.applyRow(ctx, tenantID, entity, &resp.Data[i], result); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				result.Errors++
				slog.Warn("Failed to apply pulled row",
					"tenant", tenantID,
					"entity", entity,
					"id", resp.Data[i].ID,
					"error", err)
			}
		}

		next := cursor.Advance(resp.Cursor)
		if err := e.store.SaveCursor(ctx, tenantID, entity, next); err != nil {
			return fmt.Errorf("failed to save %s cursor: %w", entity, err)
		}
		slog.Debug("Pulled page",
			"tenant", tenantID,
			"entity", entity,
			"page", page,
			"rows", len(resp.Data),
			"cursor", next.String())

		full := len(resp.Data) >= e.pageSize
		if !full || next == cursor {
			return nil
		}
		cursor = next
		if page == e.maxPages {
			result.HasMore = true
		}
	}
	return nil
}

func (e *Engine) applyRow(ctx context.Context, tenantID, entity string, row *remote.Row, result *Result) error {
	server := row.ToRecord(entity)
	if server.TenantID == "" {
		server.TenantID = tenantID
	}

	local, err := e.store.GetRecord(ctx, tenantID, entity, server.ID)
	if errors.Is(err, store.ErrNotFound) {
		if server.Deleted {
			result.Unchanged++
			return nil
		}
		if err := e.store.PutRecord(ctx, server); err != nil {
			return err
		}
		result.Inserted++
		return nil
	}
	if err != nil {
		return err
	}

	res := e.resolver.Resolve(local, server)
	if !local.Synced {
		res.Entry.EntityType = entity
		res.Entry.TenantID = tenantID
		res.Entry.EntityID = server.ID
		if err := e.store.AppendConflict(ctx, res.Entry); err != nil {
			return err
		}
		result.Conflicts++
		slog.Info("Resolved pull conflict",
			"tenant", tenantID, "entity", entity, "id", server.ID, "winner", res.Side)
	}

	if res.ClientWon() {
		result.Unchanged++
		return nil
	}
	if server.Deleted {
		if err := e.store.DeleteRecord(ctx, tenantID, entity, server.ID); err != nil {
			return err
		}
		result.Deleted++
		return nil
	}
	if err := e.store.PutRecord(ctx, res.Winner); err != nil {
		return err
	}
	result.Updated++
	return nil
}
