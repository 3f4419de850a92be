package remote

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_UnmarshalJSON_SplitsEnvelope(t *testing.T) {
	t.Parallel()

	var row Row
	err := json.Unmarshal([]byte(`{
		"id": "wo-1",
		"tenant_id": "tenant-a",
		"updated_at": "2024-03-01T08:30:00.250Z",
		"deleted": false,
		"title": "Replace filter",
		"priority": 2
	}`), &row)
	require.NoError(t, err)

	assert.Equal(t, "wo-1", row.ID)
	assert.Equal(t, "tenant-a", row.TenantID)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 30, 0, 250_000_000, time.UTC), row.UpdatedAt.UTC())
	assert.False(t, row.Deleted)
	assert.JSONEq(t, `{"title":"Replace filter","priority":2}`, string(row.Fields))
}

func TestRow_UnmarshalJSON_RejectsNonObjects(t *testing.T) {
	t.Parallel()

	var row Row
	assert.Error(t, json.Unmarshal([]byte(`["wo-1"]`), &row))
	assert.Error(t, json.Unmarshal([]byte(`{"updated_at": "yesterday"}`), &row))
}

func TestRow_MarshalJSON_FlattensEnvelope(t *testing.T) {
	t.Parallel()

	row := Row{
		ID:        "wo-1",
		UpdatedAt: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
		Deleted:   true,
		Fields:    json.RawMessage(`{"title":"Replace filter"}`),
	}
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"wo-1","updated_at":"2024-03-01T08:30:00Z","deleted":true,"title":"Replace filter"}`, string(data))
}

func TestRow_ToRecord(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	row := &Row{ID: "wo-1", TenantID: "tenant-a", UpdatedAt: ts, Fields: json.RawMessage(`{"a":1}`)}

	rec := row.ToRecord("work_orders")
	require.NotNil(t, rec)
	assert.Equal(t, "work_orders", rec.Entity)
	assert.True(t, rec.Synced)
	require.NotNil(t, rec.BaseUpdatedAt)
	assert.Equal(t, ts, *rec.BaseUpdatedAt)

	back := RowFromRecord(rec)
	assert.Equal(t, row.ID, back.ID)
	assert.JSONEq(t, string(row.Fields), string(back.Fields))

	var nilRow *Row
	assert.Nil(t, nilRow.ToRecord("work_orders"))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "empty", value: "", expected: 0},
		{name: "seconds", value: "7", expected: 7 * time.Second},
		{name: "negative seconds", value: "-1", expected: 0},
		{name: "http date", value: "Fri, 01 Mar 2024 08:00:30 GMT", expected: 30 * time.Second},
		{name: "date in the past", value: "Fri, 01 Mar 2024 07:00:00 GMT", expected: 0},
		{name: "garbage", value: "soon", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, parseRetryAfter(tt.value, now))
		})
	}
}
