package edit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/store/memory"
	"github.com/fieldops/fieldsync/internal/store/mocks"
)

var editTime = time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestEditor(t *testing.T, opts ...Option) (*Editor, *memory.Store) {
	t.Helper()
	st := memory.New()
	base := []Option{
		WithClock(func() time.Time { return editTime }),
		WithIDGenerator(sequentialIDs()),
	}
	return New(st, append(base, opts...)...), st
}

func TestEditor_Create(t *testing.T) {
	t.Parallel()

	var nudged []string
	editor, st := newTestEditor(t, WithNotifier(func(tenantID string) { nudged = append(nudged, tenantID) }))
	ctx := context.Background()

	rec, err := editor.Create(ctx, "acme", "work_orders", json.RawMessage(`{"title":"replace pump"}`))
	require.NoError(t, err)

	assert.Equal(t, "tmp-id-1", rec.ID)
	assert.True(t, domain.IsTempID(rec.ID))
	assert.False(t, rec.Synced)
	assert.Nil(t, rec.BaseUpdatedAt)
	assert.Equal(t, editTime, rec.UpdatedAt)

	stored, err := st.GetRecord(ctx, "acme", "work_orders", rec.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"replace pump"}`, string(stored.Payload))

	pending, err := st.ListPending(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "id-2", pending[0].ClientChangeID)
	assert.Equal(t, domain.ActionCreate, pending[0].Action)
	assert.Equal(t, rec.ID, pending[0].EntityID)
	assert.Nil(t, pending[0].BaseUpdatedAt)
	assert.Equal(t, editTime, pending[0].CreatedAt)

	assert.Equal(t, []string{"acme"}, nudged)
}

func TestEditor_UpdateUsesConfirmedBase(t *testing.T) {
	t.Parallel()

	editor, st := newTestEditor(t)
	ctx := context.Background()

	confirmed := editTime.Add(-time.Hour)
	require.NoError(t, st.PutRecord(ctx, &domain.Record{
		ID:            "wo-1",
		TenantID:      "acme",
		Entity:        "work_orders",
		Payload:       json.RawMessage(`{"status":"open"}`),
		UpdatedAt:     confirmed,
		BaseUpdatedAt: &confirmed,
		Synced:        true,
	}))

	rec, err := editor.Update(ctx, "acme", "work_orders", "wo-1", json.RawMessage(`{"status":"done"}`))
	require.NoError(t, err)
	assert.False(t, rec.Synced)
	assert.Equal(t, editTime, rec.UpdatedAt)

	// A second offline edit keeps the same base.
	_, err = editor.Update(ctx, "acme", "work_orders", "wo-1", json.RawMessage(`{"status":"verified"}`))
	require.NoError(t, err)

	pending, err := st.ListPending(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, c := range pending {
		assert.Equal(t, domain.ActionUpdate, c.Action)
		require.NotNil(t, c.BaseUpdatedAt)
		assert.Equal(t, confirmed, *c.BaseUpdatedAt)
	}
	assert.NotEqual(t, pending[0].ClientChangeID, pending[1].ClientChangeID)
	assert.JSONEq(t, `{"status":"verified"}`, string(pending[1].Payload))
}

func TestEditor_Delete(t *testing.T) {
	t.Parallel()

	editor, st := newTestEditor(t)
	ctx := context.Background()

	confirmed := editTime.Add(-time.Hour)
	require.NoError(t, st.PutRecord(ctx, &domain.Record{
		ID: "wo-1", TenantID: "acme", Entity: "work_orders",
		Payload: json.RawMessage(`{}`), UpdatedAt: confirmed, BaseUpdatedAt: &confirmed, Synced: true,
	}))

	require.NoError(t, editor.Delete(ctx, "acme", "work_orders", "wo-1"))
	// Deleting a tombstone again queues nothing.
	require.NoError(t, editor.Delete(ctx, "acme", "work_orders", "wo-1"))

	rec, err := st.GetRecord(ctx, "acme", "work_orders", "wo-1")
	require.NoError(t, err)
	assert.True(t, rec.Deleted)
	assert.False(t, rec.Synced)

	pending, err := st.ListPending(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ActionDelete, pending[0].Action)
	assert.Nil(t, pending[0].Payload)

	_, err = editor.Update(ctx, "acme", "work_orders", "wo-1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEditor_Validation(t *testing.T) {
	t.Parallel()

	editor, _ := newTestEditor(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		run     func() error
		wantErr string
		is      error
	}{
		{
			name:    "missing tenant",
			run:     func() error { _, err := editor.Create(ctx, "", "work_orders", json.RawMessage(`{}`)); return err },
			wantErr: "tenant id is required",
		},
		{
			name:    "missing entity",
			run:     func() error { _, err := editor.Create(ctx, "acme", "", json.RawMessage(`{}`)); return err },
			wantErr: "entity is required",
		},
		{
			name: "array payload",
			run:  func() error { _, err := editor.Create(ctx, "acme", "work_orders", json.RawMessage(`[1]`)); return err },
			is:   ErrInvalidPayload,
		},
		{
			name: "broken payload",
			run:  func() error { _, err := editor.Create(ctx, "acme", "work_orders", json.RawMessage(`{"a":`)); return err },
			is:   ErrInvalidPayload,
		},
		{
			name: "empty payload",
			run:  func() error { _, err := editor.Create(ctx, "acme", "work_orders", nil); return err },
			is:   ErrInvalidPayload,
		},
		{
			name: "update unknown record",
			run: func() error {
				_, err := editor.Update(ctx, "acme", "work_orders", "wo-404", json.RawMessage(`{}`))
				return err
			},
			is: store.ErrNotFound,
		},
		{
			name: "delete unknown record",
			run:  func() error { return editor.Delete(ctx, "acme", "work_orders", "wo-404") },
			is:   store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEditor_EnqueueFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStore(ctrl)

	st.EXPECT().PutRecord(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("disk full"))

	notified := false
	editor := New(st, WithNotifier(func(string) { notified = true }))

	_, err := editor.Create(context.Background(), "acme", "work_orders", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to queue create")
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, notified)
}
