package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/remote/mocks"
	"github.com/fieldops/fieldsync/internal/remote/remotetest"
	"github.com/fieldops/fieldsync/internal/retry"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/store/memory"
)

const (
	tenant = "acme"
	entity = "work_orders"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	server *remotetest.Server
	client remote.Client
	store  *memory.Store
	editor *edit.Editor
	sleeps []time.Duration
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)

	client, err := remote.NewHTTPClient(srv.URL)
	require.NoError(t, err)

	f := &fixture{
		server: srv,
		client: client,
		store:  memory.New(),
		now:    t0.Add(30 * time.Second),
	}
	f.editor = edit.New(f.store, edit.WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) retrier(maxAttempts int) *retry.Executor {
	return retry.New(retry.Config{
		InitialDelay: 100 * time.Millisecond,
		Factor:       2,
		MaxDelay:     time.Second,
		MaxAttempts:  maxAttempts,
	}, retry.WithSleep(func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}))
}

func (f *fixture) engine(opts ...Option) *Engine {
	return New(f.store, f.client, f.retrier(3), opts...)
}

func (f *fixture) pending(t *testing.T) []domain.PendingChange {
	t.Helper()
	pending, err := f.store.ListPending(context.Background(), tenant)
	require.NoError(t, err)
	return pending
}

func TestPush_NothingQueued(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	result, err := f.engine().Push(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, &Result{}, result)
	assert.Zero(t, f.server.PushCount())
}

func TestPush_CreateStoresCanonicalRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	created, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"title":"replace pump"}`))
	require.NoError(t, err)
	changeID := f.pending(t)[0].ClientChangeID

	result, err := f.engine().Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Zero(t, result.Remaining())
	assert.Empty(t, f.pending(t))

	sent := f.server.LastPush()
	require.NotNil(t, sent)
	require.Len(t, sent.Changes[entity].Upserts, 1)
	up := sent.Changes[entity].Upserts[0]
	assert.Equal(t, changeID, up.ClientChangeID)
	assert.Empty(t, up.ID, "temporary ids are not sent")
	assert.Nil(t, up.BaseUpdatedAt)

	records, err := f.store.ListRecords(ctx, tenant, entity)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.NotEqual(t, created.ID, rec.ID)
	assert.False(t, domain.IsTempID(rec.ID))
	assert.True(t, rec.Synced)

	row, ok := f.server.Row(entity, rec.ID)
	require.True(t, ok)
	assert.True(t, row.UpdatedAt.Equal(rec.UpdatedAt))
	require.NotNil(t, rec.BaseUpdatedAt)
	assert.True(t, row.UpdatedAt.Equal(*rec.BaseUpdatedAt))
	assert.JSONEq(t, `{"title":"replace pump"}`, string(rec.Payload))
}

func seedSynced(t *testing.T, f *fixture, id string, updatedAt time.Time, fields string) {
	t.Helper()
	f.server.Seed(entity, remote.Row{ID: id, TenantID: tenant, UpdatedAt: updatedAt, Fields: json.RawMessage(fields)})
	base := updatedAt
	require.NoError(t, f.store.PutRecord(context.Background(), &domain.Record{
		ID: id, TenantID: tenant, Entity: entity, Payload: json.RawMessage(fields),
		UpdatedAt: updatedAt, BaseUpdatedAt: &base, Synced: true,
	}))
}

func TestPush_UpdateSynced(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seedSynced(t, f, "wo-1", t0.Add(10*time.Second), `{"status":"open"}`)

	_, err := f.editor.Update(ctx, tenant, entity, "wo-1", json.RawMessage(`{"status":"done"}`))
	require.NoError(t, err)

	result, err := f.engine().Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	up := f.server.LastPush().Changes[entity].Upserts[0]
	assert.Equal(t, "wo-1", up.ID)
	require.NotNil(t, up.BaseUpdatedAt)
	assert.True(t, t0.Add(10*time.Second).Equal(*up.BaseUpdatedAt))

	rec, err := f.store.GetRecord(ctx, tenant, entity, "wo-1")
	require.NoError(t, err)
	assert.True(t, rec.Synced)
	assert.JSONEq(t, `{"status":"done"}`, string(rec.Payload))
	row, _ := f.server.Row(entity, "wo-1")
	assert.JSONEq(t, `{"status":"done"}`, string(row.Fields))
}

func TestPush_ConflictServerNewerWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	// Local copy is based on t0+5s; another device has since written t0+60s.
	seedSynced(t, f, "wo-1", t0.Add(5*time.Second), `{"status":"open"}`)
	f.server.Seed(entity, remote.Row{
		ID: "wo-1", TenantID: tenant, UpdatedAt: t0.Add(60 * time.Second), Fields: json.RawMessage(`{"status":"cancelled"}`),
	})

	_, err := f.editor.Update(ctx, tenant, entity, "wo-1", json.RawMessage(`{"status":"done"}`))
	require.NoError(t, err)

	result, err := f.engine().Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Empty(t, f.pending(t))

	rec, err := f.store.GetRecord(ctx, tenant, entity, "wo-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"cancelled"}`, string(rec.Payload))
	assert.True(t, t0.Add(60*time.Second).Equal(rec.UpdatedAt))
	assert.True(t, rec.Synced)

	conflicts, err := f.store.ListConflicts(ctx, tenant, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	entry := conflicts[0]
	assert.Equal(t, domain.SideServer, entry.Winner)
	assert.Equal(t, entity, entry.EntityType)
	assert.Equal(t, "wo-1", entry.EntityID)
	assert.Equal(t, tenant, entry.TenantID)
	assert.JSONEq(t, `{"status":"done"}`, string(entry.ClientVersion.Payload))
	assert.JSONEq(t, `{"status":"cancelled"}`, string(entry.ServerVersion.Payload))
	assert.JSONEq(t, `{"status":"cancelled"}`, string(entry.ResolvedVersion.Payload))
}

func TestPush_ConflictClientNewerWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	seedSynced(t, f, "wo-1", t0.Add(5*time.Second), `{"status":"open"}`)
	f.server.Seed(entity, remote.Row{
		ID: "wo-1", TenantID: tenant, UpdatedAt: t0.Add(10 * time.Second), Fields: json.RawMessage(`{"status":"cancelled"}`),
	})
	f.now = t0.Add(2 * time.Minute)

	_, err := f.editor.Update(ctx, tenant, entity, "wo-1", json.RawMessage(`{"status":"done"}`))
	require.NoError(t, err)

	original := f.pending(t)[0].ClientChangeID
	engine := f.engine(WithIDGenerator(func() string { return "resend-1" }))

	result, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	pending := f.pending(t)
	require.Len(t, pending, 1, "the winning version is queued again")
	resend := pending[0]
	assert.Equal(t, "resend-1", resend.ClientChangeID)
	assert.NotEqual(t, original, resend.ClientChangeID)
	assert.Equal(t, "wo-1", resend.EntityID)
	assert.Equal(t, domain.ActionUpdate, resend.Action)
	assert.JSONEq(t, `{"status":"done"}`, string(resend.Payload))
	require.NotNil(t, resend.BaseUpdatedAt)
	assert.True(t, t0.Add(10*time.Second).Equal(*resend.BaseUpdatedAt))

	rec, err := f.store.GetRecord(ctx, tenant, entity, "wo-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(rec.Payload))
	assert.False(t, rec.Synced)
	require.NotNil(t, rec.BaseUpdatedAt)
	assert.True(t, t0.Add(10*time.Second).Equal(*rec.BaseUpdatedAt))

	conflicts, err := f.store.ListConflicts(ctx, tenant, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, domain.SideClient, conflicts[0].Winner)

	second, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Synced)
	assert.Zero(t, second.Conflicts)
	assert.Empty(t, f.pending(t))

	row, ok := f.server.Row(entity, "wo-1")
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"done"}`, string(row.Fields))

	rec, err = f.store.GetRecord(ctx, tenant, entity, "wo-1")
	require.NoError(t, err)
	assert.True(t, rec.Synced)
	assert.True(t, row.UpdatedAt.Equal(rec.UpdatedAt))
}

func TestPush_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.server.FailNext(http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)

	_, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"title":"pump"}`))
	require.NoError(t, err)

	engine := New(f.store, f.client, f.retrier(7))
	result, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 4, f.server.PushCount())
	assert.Equal(t, 1, f.server.CreateCount())

	require.Len(t, f.sleeps, 3)
	var total time.Duration
	for _, d := range f.sleeps {
		total += d
	}
	assert.LessOrEqual(t, total, 3*time.Second)
}

func TestPush_GivesUpAndKeepsQueue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.server.FailNext(http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway)

	_, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"title":"pump"}`))
	require.NoError(t, err)

	_, err = f.engine().Push(ctx, tenant)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, remote.StatusCode(err))
	assert.Len(t, f.pending(t), 1)
}

func TestPush_TenantNotResolvedIsSoftSkip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.server.SetTenantNotResolved(true)

	_, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"title":"pump"}`))
	require.NoError(t, err)
	before := f.pending(t)

	result, err := f.engine().Push(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, f.server.PushCount(), "tenant-not-resolved is never retried")
	assert.Equal(t, before, f.pending(t))
}

func TestPush_RejectedChangesAreParked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.server.RejectWhen(func(_ string, up remote.Upsert) string {
		var fields map[string]any
		_ = json.Unmarshal(up.NewValues.Fields, &fields)
		if fields["status"] == "bogus" {
			return "invalid status"
		}
		return ""
	})

	_, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"status":"bogus"}`))
	require.NoError(t, err)
	_, err = f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"status":"open"}`))
	require.NoError(t, err)

	result, err := f.engine(WithClock(func() time.Time { return t0 })).Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Rejected)
	assert.Empty(t, f.pending(t))

	failed, err := f.store.ListFailed(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "invalid status", failed[0].Reason)
	assert.Equal(t, domain.ActionCreate, failed[0].Change.Action)
	assert.True(t, t0.Equal(failed[0].FailedAt))
}

func TestPush_FollowUpEditsOfNewRecordWaitForCreate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	created, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"status":"open"}`))
	require.NoError(t, err)
	f.now = f.now.Add(time.Second)
	_, err = f.editor.Update(ctx, tenant, entity, created.ID, json.RawMessage(`{"status":"done"}`))
	require.NoError(t, err)

	engine := f.engine()
	first, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Synced)
	assert.Equal(t, 1, first.Deferred)

	pending := f.pending(t)
	require.Len(t, pending, 1)
	canonicalID := pending[0].EntityID
	assert.False(t, domain.IsTempID(canonicalID), "queued update follows the canonical id")

	// The local view keeps the newer edit while only the create is confirmed.
	rec, err := f.store.GetRecord(ctx, tenant, entity, canonicalID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done"}`, string(rec.Payload))
	assert.False(t, rec.Synced)
	_, err = f.store.GetRecord(ctx, tenant, entity, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	second, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Synced)
	assert.Zero(t, second.Conflicts)
	assert.Empty(t, f.pending(t))
	assert.Equal(t, 1, f.server.CreateCount())

	row, ok := f.server.Row(entity, canonicalID)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"done"}`, string(row.Fields))
}

func TestPush_DeleteRemovesMirror(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seedSynced(t, f, "wo-1", t0.Add(5*time.Second), `{"status":"open"}`)

	require.NoError(t, f.editor.Delete(ctx, tenant, entity, "wo-1"))

	result, err := f.engine().Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)

	dels := f.server.LastPush().Changes[entity].Deletes
	require.Len(t, dels, 1)
	assert.Equal(t, "wo-1", dels[0].ID)

	_, err = f.store.GetRecord(ctx, tenant, entity, "wo-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	row, _ := f.server.Row(entity, "wo-1")
	assert.True(t, row.Deleted)
}

func TestPush_DeleteOfNeverCreatedRecordIsDiscarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.server.RejectWhen(func(string, remote.Upsert) string { return "quota exceeded" })

	created, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"status":"open"}`))
	require.NoError(t, err)
	require.NoError(t, f.editor.Delete(ctx, tenant, entity, created.ID))

	engine := f.engine()
	first, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Rejected)
	assert.Equal(t, 1, first.Deferred)

	pushes := f.server.PushCount()
	second, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Discarded)
	assert.Equal(t, pushes, f.server.PushCount(), "nothing left to send")
	assert.Empty(t, f.pending(t))

	_, err = f.store.GetRecord(ctx, tenant, entity, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPush_EditOfUncreatedTemporaryRecordIsParked(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Enqueue(ctx, &domain.PendingChange{
		ClientChangeID: "orphan", TenantID: tenant, Entity: entity, EntityID: domain.TempIDPrefix + "gone",
		Action: domain.ActionUpdate, Payload: json.RawMessage(`{"status":"done"}`), CreatedAt: t0,
	})
	require.NoError(t, err)

	result, err := f.engine(WithClock(func() time.Time { return t0 })).Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rejected)
	assert.Zero(t, result.Remaining())
	assert.Zero(t, f.server.PushCount(), "nothing addressable was sent")
	assert.Zero(t, f.server.CreateCount())
	assert.Empty(t, f.pending(t))

	failed, err := f.store.ListFailed(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ReasonNeverCreated, failed[0].Reason)
	assert.Equal(t, "orphan", failed[0].Change.ClientChangeID)
}

func TestPush_ReKeyKeepsTemporaryRecordWhenCanonicalWriteFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	base := memory.New()
	st := &failingPutStore{Store: base, failID: "wo-100"}
	ctx := context.Background()

	created, err := edit.New(base).Create(ctx, tenant, entity, json.RawMessage(`{"title":"pump"}`))
	require.NoError(t, err)

	client.EXPECT().Push(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *remote.PushRequest) (*remote.PushResponse, error) {
			up := req.Changes[entity].Upserts[0]
			row := up.NewValues
			row.ID = "wo-100"
			row.UpdatedAt = t0.Add(time.Minute)
			return &remote.PushResponse{
				Synced: []remote.SyncedItem{{ClientChangeID: up.ClientChangeID, Row: &row}},
			}, nil
		})

	result, err := New(st, client, retry.New(retry.DefaultConfig())).Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Zero(t, result.Synced)

	rec, err := base.GetRecord(ctx, tenant, entity, created.ID)
	require.NoError(t, err, "the temporary record survives a failed re-key")
	assert.JSONEq(t, `{"title":"pump"}`, string(rec.Payload))

	pending := mustPending(t, base)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].EntityID)
}

// lostResponseClient applies the first push on the server but reports a
// dropped connection, as when the network fails mid-response.
type lostResponseClient struct {
	remote.Client
	dropped bool
}

func (c *lostResponseClient) Push(ctx context.Context, req *remote.PushRequest) (*remote.PushResponse, error) {
	resp, err := c.Client.Push(ctx, req)
	if err == nil && !c.dropped {
		c.dropped = true
		return nil, syscall.ECONNRESET
	}
	return resp, err
}

func TestPush_ReplayAfterLostResponseIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.editor.Create(ctx, tenant, entity, json.RawMessage(`{"title":"pump"}`))
	require.NoError(t, err)

	engine := New(f.store, &lostResponseClient{Client: f.client}, f.retrier(3))
	result, err := engine.Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 2, f.server.PushCount())
	assert.Equal(t, 1, f.server.CreateCount(), "replayed create is deduplicated by client_change_id")
	assert.Equal(t, 1, f.server.RowCount(entity))
}

func TestPush_GroupsByEntityInOrderOfAppearance(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	st := memory.New()
	ctx := context.Background()
	editor := edit.New(st)

	_, err := editor.Create(ctx, tenant, "inspections", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	_, err = editor.Create(ctx, tenant, entity, json.RawMessage(`{"n":2}`))
	require.NoError(t, err)
	_, err = editor.Create(ctx, tenant, "inspections", json.RawMessage(`{"n":3}`))
	require.NoError(t, err)

	var entities []string
	client.EXPECT().Push(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
		func(_ context.Context, req *remote.PushRequest) (*remote.PushResponse, error) {
			entities = append(entities, req.Entity)
			assert.Equal(t, tenant, req.TenantID)
			require.Len(t, req.Changes, 1)
			assert.NotNil(t, req.Changes[req.Entity].Deletes)
			return &remote.PushResponse{}, nil
		})

	result, err := New(st, client, retry.New(retry.DefaultConfig())).Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, []string{"inspections", entity}, entities)
	assert.Equal(t, 3, result.Unresolved)
	assert.Len(t, mustPending(t, st), 3)
}

func TestPush_ItemFailuresDoNotAbortBatch(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	base := memory.New()
	st := &failingPutStore{Store: base, failID: "wo-2"}
	ctx := context.Background()

	var changeIDs []string
	for _, id := range []string{"wo-1", "wo-2", "wo-3"} {
		confirmed := t0
		require.NoError(t, base.PutRecord(ctx, &domain.Record{
			ID: id, TenantID: tenant, Entity: entity, Payload: json.RawMessage(`{}`),
			UpdatedAt: t0, BaseUpdatedAt: &confirmed, Synced: true,
		}))
		c := &domain.PendingChange{
			ClientChangeID: "change-" + id, TenantID: tenant, Entity: entity, EntityID: id,
			Action: domain.ActionUpdate, Payload: json.RawMessage(`{"v":1}`), BaseUpdatedAt: &confirmed, CreatedAt: t0,
		}
		_, err := base.Enqueue(ctx, c)
		require.NoError(t, err)
		changeIDs = append(changeIDs, c.ClientChangeID)
	}

	client.EXPECT().Push(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *remote.PushRequest) (*remote.PushResponse, error) {
			resp := &remote.PushResponse{}
			for _, up := range req.Changes[entity].Upserts {
				row := up.NewValues
				row.UpdatedAt = t0.Add(time.Minute)
				resp.Synced = append(resp.Synced, remote.SyncedItem{ClientChangeID: up.ClientChangeID, Row: &row})
			}
			// Duplicates and unknown ids are ignored.
			resp.Synced = append(resp.Synced, resp.Synced[0], remote.SyncedItem{ClientChangeID: "stranger"})
			return resp, nil
		})

	result, err := New(st, client, retry.New(retry.DefaultConfig())).Push(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Errors)

	pending := mustPending(t, base)
	require.Len(t, pending, 1)
	assert.Equal(t, changeIDs[1], pending[0].ClientChangeID)
}

func TestPush_RequestErrorIsReturned(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	st := memory.New()
	ctx := context.Background()

	_, err := edit.New(st).Create(ctx, tenant, entity, json.RawMessage(`{}`))
	require.NoError(t, err)

	client.EXPECT().Push(gomock.Any(), gomock.Any()).
		Return(nil, remote.NewHTTPError(http.StatusBadRequest, "http://sync/sync/work_orders", "malformed"))

	_, err = New(st, client, retry.New(retry.DefaultConfig())).Push(ctx, tenant)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push work_orders changes")
	assert.Len(t, mustPending(t, st), 1)
}

func TestPush_ListFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	st := &failingPutStore{Store: memory.New(), listErr: errors.New("database is locked")}

	_, err := New(st, client, retry.New(retry.DefaultConfig())).Push(context.Background(), tenant)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

type failingPutStore struct {
	*memory.Store
	failID  string
	listErr error
}

func (s *failingPutStore) PutRecord(ctx context.Context, rec *domain.Record) error {
	if rec.ID == s.failID {
		return errors.New("disk full")
	}
	return s.Store.PutRecord(ctx, rec)
}

func (s *failingPutStore) ListPending(ctx context.Context, tenantID string) ([]domain.PendingChange, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListPending(ctx, tenantID)
}

func mustPending(t *testing.T, st *memory.Store) []domain.PendingChange {
	t.Helper()
	pending, err := st.ListPending(context.Background(), tenant)
	require.NoError(t, err)
	return pending
}
