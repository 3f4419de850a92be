package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCursor_Advance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  Cursor
		next     Cursor
		expected Cursor
	}{
		{
			name:     "first pull takes server cursor",
			current:  "",
			next:     "2024-01-01T10:00:00Z",
			expected: "2024-01-01T10:00:00Z",
		},
		{
			name:     "empty server cursor keeps stored value",
			current:  "2024-01-01T10:00:00Z",
			next:     "",
			expected: "2024-01-01T10:00:00Z",
		},
		{
			name:     "later cursor advances",
			current:  "2024-01-01T10:00:00Z",
			next:     "2024-01-01T10:05:00.5Z",
			expected: "2024-01-01T10:05:00.5Z",
		},
		{
			name:     "older cursor is ignored",
			current:  "2024-01-01T10:05:00Z",
			next:     "2024-01-01T10:00:00Z",
			expected: "2024-01-01T10:05:00Z",
		},
		{
			name:     "opaque cursor replaces stored value",
			current:  "page-7",
			next:     "page-8",
			expected: "page-8",
		},
		{
			name:     "both empty",
			current:  "",
			next:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.current.Advance(tt.next))
		})
	}
}

func TestIsTempID(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTempID("tmp-4a1c"))
	assert.False(t, IsTempID("wo-1"))
	assert.False(t, IsTempID(""))
}

func TestRecord_Clone(t *testing.T) {
	t.Parallel()

	var nilRecord *Record
	assert.Nil(t, nilRecord.Clone())

	base := mustTime(t, "2024-01-01T10:00:00Z")
	orig := &Record{ID: "wo-1", Payload: []byte(`{"a":1}`), BaseUpdatedAt: &base}
	clone := orig.Clone()
	clone.Payload[5] = '2'
	*clone.BaseUpdatedAt = base.Add(1)

	assert.JSONEq(t, `{"a":1}`, string(orig.Payload))
	assert.Equal(t, base, *orig.BaseUpdatedAt)
}

func TestAction_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, ActionCreate.IsValid())
	assert.True(t, ActionUpdate.IsValid())
	assert.True(t, ActionDelete.IsValid())
	assert.False(t, Action("upsert").IsValid())
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}
