// Package domain contains the data model shared by the sync engine, the local
// store and the remote client.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Action is the kind of local edit captured by a PendingChange
type Action string

const (
	// ActionCreate is a record created locally
	ActionCreate Action = "create"
	// ActionUpdate is a local modification of an existing record
	ActionUpdate Action = "update"
	// ActionDelete is a local deletion
	ActionDelete Action = "delete"
)

// IsValid reports whether the action is one of the known actions
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// TempIDPrefix marks identifiers assigned locally before the server has seen the record
const TempIDPrefix = "tmp-"

// IsTempID reports whether id was issued locally and is not yet known to the server
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// PendingChange is one queued local edit awaiting delivery to the server
type PendingChange struct {
	// LocalID is the local sequence id. Ascending LocalID is creation order.
	LocalID int64 `json:"local_id"`

	// ClientChangeID is the idempotency key. It is generated once when the
	// edit is captured and sent unchanged on every attempt.
	ClientChangeID string `json:"client_change_id"`

	TenantID string          `json:"tenant_id"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entity_id"`
	Action   Action          `json:"action"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	// BaseUpdatedAt is the last server-confirmed version the edit was made against
	BaseUpdatedAt *time.Time `json:"base_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	Synced    bool      `json:"synced"`
}

// Record is the local mirror of a server-side entity row
type Record struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenant_id"`
	Entity   string          `json:"entity"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	// UpdatedAt is the version stamp compared by conflict resolution
	UpdatedAt time.Time `json:"updated_at"`

	// BaseUpdatedAt is the last stamp the server confirmed for this record
	BaseUpdatedAt *time.Time `json:"base_updated_at,omitempty"`

	// Synced is false while the record carries local edits the server has not accepted
	Synced bool `json:"synced"`

	// Deleted marks a server-side tombstone
	Deleted bool `json:"deleted,omitempty"`
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	if r.BaseUpdatedAt != nil {
		t := *r.BaseUpdatedAt
		c.BaseUpdatedAt = &t
	}
	return &c
}

// Side identifies which version won a conflict
type Side string

const (
	// SideClient means the local version won
	SideClient Side = "client"
	// SideServer means the server version won
	SideServer Side = "server"
)

// ConflictLogEntry is an append-only audit record of one resolved conflict
type ConflictLogEntry struct {
	ID              int64     `json:"id,omitempty"`
	EntityType      string    `json:"entity_type"`
	EntityID        string    `json:"entity_id"`
	TenantID        string    `json:"tenant_id"`
	ClientVersion   *Record   `json:"client_version"`
	ServerVersion   *Record   `json:"server_version"`
	ResolvedVersion *Record   `json:"resolved_version"`
	Winner          Side      `json:"winner"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// FailedChange is a pending change the server rejected permanently.
// It is kept for inspection instead of being dropped.
type FailedChange struct {
	Change   PendingChange `json:"change"`
	Reason   string        `json:"reason"`
	FailedAt time.Time     `json:"failed_at"`
}
