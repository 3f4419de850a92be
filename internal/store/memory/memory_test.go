package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/store/storetest"
)

func TestStore_Conformance(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	rec := &domain.Record{ID: "wo-1", TenantID: "tenant-a", Entity: "work_orders", Payload: json.RawMessage(`{"a":1}`)}
	require.NoError(t, s.PutRecord(ctx, rec))
	rec.Payload[5] = '2'

	got, err := s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.Payload))

	got.Synced = true
	again, err := s.GetRecord(ctx, "tenant-a", "work_orders", "wo-1")
	require.NoError(t, err)
	assert.False(t, again.Synced)
}

func TestStore_MarkConsumedUnknown(t *testing.T) {
	t.Parallel()

	err := New().MarkConsumed(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
