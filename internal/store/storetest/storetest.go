// Package storetest holds the behaviour every store.Store implementation must share.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
)

// Factory returns a fresh, empty store for one subtest
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC)

// Run executes the conformance suite against newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("queue keeps creation order per tenant", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := change("c-1", "tenant-a", "wo-1", domain.ActionUpdate)
		other := change("c-2", "tenant-b", "wo-2", domain.ActionUpdate)
		second := change("c-3", "tenant-a", "tmp-1", domain.ActionCreate)
		for _, c := range []*domain.PendingChange{first, other, second} {
			id, err := s.Enqueue(ctx, c)
			require.NoError(t, err)
			assert.Equal(t, id, c.LocalID)
		}
		assert.Less(t, first.LocalID, second.LocalID)

		pending, err := s.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "c-1", pending[0].ClientChangeID)
		assert.Equal(t, "c-3", pending[1].ClientChangeID)
		assert.Equal(t, domain.ActionCreate, pending[1].Action)
		assert.JSONEq(t, `{"title":"pump"}`, string(pending[1].Payload))
		require.NotNil(t, pending[0].BaseUpdatedAt)
		assert.True(t, base.Equal(*pending[0].BaseUpdatedAt))
		assert.True(t, base.Equal(pending[0].CreatedAt))
	})

	t.Run("queue rejects duplicate client change ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Enqueue(ctx, change("c-1", "tenant-a", "wo-1", domain.ActionUpdate))
		require.NoError(t, err)
		_, err = s.Enqueue(ctx, change("c-1", "tenant-a", "wo-1", domain.ActionUpdate))
		assert.True(t, errors.Is(err, store.ErrDuplicateChange), "got %v", err)
	})

	t.Run("consumed changes leave the pending list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := change("c-1", "tenant-a", "wo-1", domain.ActionDelete)
		_, err := s.Enqueue(ctx, c)
		require.NoError(t, err)

		require.NoError(t, s.MarkConsumed(ctx, c.LocalID))
		require.NoError(t, s.MarkConsumed(ctx, c.LocalID))

		pending, err := s.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("remap rewrites only pending changes of the same entity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		create := change("c-1", "tenant-a", "tmp-1", domain.ActionCreate)
		update := change("c-2", "tenant-a", "tmp-1", domain.ActionUpdate)
		otherEntity := change("c-3", "tenant-a", "tmp-1", domain.ActionUpdate)
		otherEntity.Entity = "assets"
		for _, c := range []*domain.PendingChange{create, update, otherEntity} {
			_, err := s.Enqueue(ctx, c)
			require.NoError(t, err)
		}
		require.NoError(t, s.MarkConsumed(ctx, create.LocalID))

		require.NoError(t, s.RemapEntityID(ctx, "tenant-a", "work_orders", "tmp-1", "wo-9"))

		pending, err := s.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "wo-9", pending[0].EntityID)
		assert.Equal(t, "tmp-1", pending[1].EntityID)
	})

	t.Run("records round trip and delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
		assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

		rec := record("tenant-a", "wo-1", `{"status":"open"}`)
		require.NoError(t, s.PutRecord(ctx, rec))

		got, err := s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"open"}`, string(got.Payload))
		assert.True(t, base.Equal(got.UpdatedAt))
		assert.False(t, got.Synced)
		assert.Nil(t, got.BaseUpdatedAt)

		confirmed := base.Add(time.Minute)
		rec.Payload = json.RawMessage(`{"status":"closed"}`)
		rec.Synced = true
		rec.BaseUpdatedAt = &confirmed
		require.NoError(t, s.PutRecord(ctx, rec))

		got, err = s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"closed"}`, string(got.Payload))
		assert.True(t, got.Synced)
		require.NotNil(t, got.BaseUpdatedAt)
		assert.True(t, confirmed.Equal(*got.BaseUpdatedAt))

		_, err = s.GetRecord(ctx, "tenant-b", "work_orders", "wo-1")
		assert.True(t, errors.Is(err, store.ErrNotFound))

		require.NoError(t, s.DeleteRecord(ctx, "tenant-a", "work_orders", "wo-1"))
		require.NoError(t, s.DeleteRecord(ctx, "tenant-a", "work_orders", "wo-1"))
		_, err = s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("records list by entity ordered by id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"wo-2", "wo-1", "wo-3"} {
			require.NoError(t, s.PutRecord(ctx, record("tenant-a", id, `{}`)))
		}
		require.NoError(t, s.PutRecord(ctx, record("tenant-b", "wo-4", `{}`)))

		list, err := s.ListRecords(ctx, "tenant-a", "work_orders")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"wo-1", "wo-2", "wo-3"}, []string{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("conflict log lists newest first with limit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i, winner := range []domain.Side{domain.SideServer, domain.SideClient, domain.SideServer} {
			client := record("tenant-a", "wo-1", `{"v":"client"}`)
			server := record("tenant-a", "wo-1", `{"v":"server"}`)
			server.UpdatedAt = base.Add(time.Duration(i) * time.Second)
			entry := &domain.ConflictLogEntry{
				EntityType:      "work_orders",
				EntityID:        "wo-1",
				TenantID:        "tenant-a",
				ClientVersion:   client,
				ServerVersion:   server,
				ResolvedVersion: server,
				Winner:          winner,
				ResolvedAt:      base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, s.AppendConflict(ctx, entry))
			assert.NotZero(t, entry.ID)
		}

		all, err := s.ListConflicts(ctx, "tenant-a", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, base.Add(2*time.Minute).Equal(all[0].ResolvedAt))
		assert.Equal(t, domain.SideClient, all[1].Winner)
		require.NotNil(t, all[0].ServerVersion)
		assert.JSONEq(t, `{"v":"server"}`, string(all[0].ServerVersion.Payload))
		assert.JSONEq(t, `{"v":"client"}`, string(all[0].ClientVersion.Payload))

		limited, err := s.ListConflicts(ctx, "tenant-a", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		none, err := s.ListConflicts(ctx, "tenant-b", 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("conflict log keeps a missing version empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		server := record("tenant-a", "wo-9", `{"v":"server"}`)
		require.NoError(t, s.AppendConflict(ctx, &domain.ConflictLogEntry{
			EntityType:      "work_orders",
			EntityID:        "wo-9",
			TenantID:        "tenant-a",
			ServerVersion:   server,
			ResolvedVersion: server,
			Winner:          domain.SideServer,
			ResolvedAt:      base,
		}))

		all, err := s.ListConflicts(ctx, "tenant-a", 0)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Nil(t, all[0].ClientVersion)
		require.NotNil(t, all[0].ResolvedVersion)
		assert.JSONEq(t, `{"v":"server"}`, string(all[0].ResolvedVersion.Payload))
	})

	t.Run("failed changes are parked with their reason", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := change("c-1", "tenant-a", "wo-1", domain.ActionUpdate)
		_, err := s.Enqueue(ctx, c)
		require.NoError(t, err)

		require.NoError(t, s.ParkFailed(ctx, &domain.FailedChange{Change: *c, Reason: "invalid status", FailedAt: base}))

		failed, err := s.ListFailed(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "invalid status", failed[0].Reason)
		assert.Equal(t, "c-1", failed[0].Change.ClientChangeID)
		assert.Equal(t, c.LocalID, failed[0].Change.LocalID)
		assert.True(t, base.Equal(failed[0].FailedAt))

		other, err := s.ListFailed(ctx, "tenant-b")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("cursors are stored per tenant and entity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		cur, err := s.GetCursor(ctx, "tenant-a", "work_orders")
		require.NoError(t, err)
		assert.True(t, cur.IsZero())

		require.NoError(t, s.SaveCursor(ctx, "tenant-a", "work_orders", "2024-06-01T12:00:00Z"))
		require.NoError(t, s.SaveCursor(ctx, "tenant-a", "work_orders", "2024-06-01T12:05:00Z"))
		require.NoError(t, s.SaveCursor(ctx, "tenant-a", "assets", "2024-01-01T00:00:00Z"))

		cur, err = s.GetCursor(ctx, "tenant-a", "work_orders")
		require.NoError(t, err)
		assert.Equal(t, domain.Cursor("2024-06-01T12:05:00Z"), cur)

		cur, err = s.GetCursor(ctx, "tenant-b", "work_orders")
		require.NoError(t, err)
		assert.True(t, cur.IsZero())
	})
}

func change(changeID, tenant, entityID string, action domain.Action) *domain.PendingChange {
	baseAt := base
	return &domain.PendingChange{
		ClientChangeID: changeID,
		TenantID:       tenant,
		Entity:         "work_orders",
		EntityID:       entityID,
		Action:         action,
		Payload:        json.RawMessage(`{"title":"pump"}`),
		BaseUpdatedAt:  &baseAt,
		CreatedAt:      base,
	}
}

func record(tenant, id, payload string) *domain.Record {
	return &domain.Record{
		ID:        id,
		TenantID:  tenant,
		Entity:    "work_orders",
		Payload:   json.RawMessage(payload),
		UpdatedAt: base,
	}
}
