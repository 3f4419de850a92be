package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/fieldsync/internal/domain"
)

// Envelope keys every row carries next to its business fields
const (
	fieldID        = "id"
	fieldTenantID  = "tenant_id"
	fieldUpdatedAt = "updated_at"
	fieldDeleted   = "deleted"
)

// Row is one entity row as exchanged with the server. The business fields are
// opaque and kept in Fields; the envelope is decoded into typed fields.
type Row struct {
	ID        string
	TenantID  string
	UpdatedAt time.Time
	Deleted   bool

	// Fields holds the business fields as a JSON object, without the envelope keys
	Fields json.RawMessage
}

// UnmarshalJSON splits the row object into its envelope and business fields
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("row is not a JSON object: %w", err)
	}

	var out Row
	if v, ok := raw[fieldID]; ok {
		if err := json.Unmarshal(v, &out.ID); err != nil {
			return fmt.Errorf("invalid row id: %w", err)
		}
	}
	if v, ok := raw[fieldTenantID]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.TenantID); err != nil {
			return fmt.Errorf("invalid row tenant_id: %w", err)
		}
	}
	if v, ok := raw[fieldUpdatedAt]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.UpdatedAt); err != nil {
			return fmt.Errorf("invalid row updated_at: %w", err)
		}
	}
	if v, ok := raw[fieldDeleted]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.Deleted); err != nil {
			return fmt.Errorf("invalid row deleted flag: %w", err)
		}
	}

	for _, key := range []string{fieldID, fieldTenantID, fieldUpdatedAt, fieldDeleted} {
		delete(raw, key)
	}
	fields, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	out.Fields = fields

	*r = out
	return nil
}

// MarshalJSON flattens the envelope and business fields into one object
func (r Row) MarshalJSON() ([]byte, error) {
	obj := map[string]any{}
	if len(r.Fields) > 0 && !isNull(r.Fields) {
		if err := json.Unmarshal(r.Fields, &obj); err != nil {
			return nil, fmt.Errorf("row fields must be a JSON object: %w", err)
		}
	}
	if r.ID != "" {
		obj[fieldID] = r.ID
	}
	if r.TenantID != "" {
		obj[fieldTenantID] = r.TenantID
	}
	if !r.UpdatedAt.IsZero() {
		obj[fieldUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	if r.Deleted {
		obj[fieldDeleted] = true
	}
	return json.Marshal(obj)
}

// ToRecord converts the row to a local record of the given entity type.
// The record is marked synced with the row's stamp as its confirmed base.
func (r *Row) ToRecord(entity string) *domain.Record {
	if r == nil {
		return nil
	}
	base := r.UpdatedAt
	return &domain.Record{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Entity:        entity,
		Payload:       append(json.RawMessage(nil), r.Fields...),
		UpdatedAt:     r.UpdatedAt,
		BaseUpdatedAt: &base,
		Synced:        true,
		Deleted:       r.Deleted,
	}
}

// RowFromRecord builds the wire form of a local record
func RowFromRecord(rec *domain.Record) *Row {
	if rec == nil {
		return nil
	}
	return &Row{
		ID:        rec.ID,
		TenantID:  rec.TenantID,
		UpdatedAt: rec.UpdatedAt,
		Deleted:   rec.Deleted,
		Fields:    append(json.RawMessage(nil), rec.Payload...),
	}
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Upsert is one create or update submitted in a push
type Upsert struct {
	ClientChangeID string     `json:"client_change_id"`
	ID             string     `json:"id,omitempty"`
	BaseUpdatedAt  *time.Time `json:"base_updated_at"`
	NewValues      Row        `json:"new_values"`
}

// Delete is one deletion submitted in a push
type Delete struct {
	ClientChangeID string `json:"client_change_id"`
	ID             string `json:"id"`
}

// EntityChanges groups the upserts and deletes for one entity type
type EntityChanges struct {
	Upserts []Upsert `json:"upserts"`
	Deletes []Delete `json:"deletes"`
}

// PushRequest is the body of POST /sync/{entity}
type PushRequest struct {
	TenantID string                   `json:"tenant_id"`
	Changes  map[string]EntityChanges `json:"changes"`

	// Entity selects the endpoint; it is also the single key of Changes
	Entity string `json:"-"`
}

// Len returns the number of items carried by the request
func (r *PushRequest) Len() int {
	n := 0
	for _, c := range r.Changes {
		n += len(c.Upserts) + len(c.Deletes)
	}
	return n
}

// SyncedItem reports an accepted change and the canonical row, if any
type SyncedItem struct {
	ClientChangeID string `json:"client_change_id"`
	Row            *Row   `json:"row,omitempty"`
}

// ConflictItem reports a change that lost optimistic concurrency on the server
type ConflictItem struct {
	ClientChangeID string `json:"client_change_id"`
	ID             string `json:"id"`
	Client         *Row   `json:"client"`
	Server         *Row   `json:"server"`
}

// RejectedItem reports a change the server will never accept
type RejectedItem struct {
	ClientChangeID string `json:"client_change_id"`
	Reason         string `json:"reason,omitempty"`
}

// PushResponse classifies every submitted item exactly once
type PushResponse struct {
	Synced    []SyncedItem   `json:"synced"`
	Conflicts []ConflictItem `json:"conflicts"`
	Rejected  []RejectedItem `json:"rejected"`
}

// PullRequest describes GET /sync/{entity}
type PullRequest struct {
	TenantID string
	Entity   string
	Since    domain.Cursor
	Limit    int
}

// PullResponse is one page of remote changes
type PullResponse struct {
	Cursor domain.Cursor `json:"cursor"`
	Data   []Row         `json:"data"`
}
