// Package remotetest provides an in-process sync server implementing the wire
// contract, for tests that exercise the engines end to end.
package remotetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/remote"
)

// ChangesMessageType is the websocket message type announcing new remote changes
const ChangesMessageType = "changes"

// Message is sent to websocket subscribers
type Message struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id"`
	Entity   string `json:"entity,omitempty"`
}

type outcome struct {
	synced   *remote.SyncedItem
	conflict *remote.ConflictItem
	rejected *remote.RejectedItem
}

// Server is a fake sync server. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	rows        map[string]map[string]*remote.Row // entity -> id -> row
	seen        map[string]outcome                // client_change_id -> first outcome
	clock       time.Time
	failures    []int
	unresolved  bool
	rejectRule  func(entity string, up remote.Upsert) string
	pushCount   int
	pullCount   int
	createCount int
	lastPush    *remote.PushRequest
	pullQueries []string

	upgrader websocket.Upgrader
	connsMu  sync.Mutex
	conns    map[*websocket.Conn]struct{}
}

// NewServer starts a fake sync server
func NewServer() *Server {
	s := &Server{
		rows:  map[string]map[string]*remote.Row{},
		seen:  map[string]outcome{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		conns: map[*websocket.Conn]struct{}{},
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/sync/{entity}", s.handlePush)
	r.Get("/sync/{entity}", s.handlePull)
	r.Get("/notifications", s.handleNotifications)

	s.Server = httptest.NewServer(r)
	return s
}

// Close shuts down websocket connections and the HTTP server
func (s *Server) Close() {
	s.connsMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = map[*websocket.Conn]struct{}{}
	s.connsMu.Unlock()
	s.Server.Close()
}

// FailNext makes the next len(statuses) sync requests fail with the given statuses
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// SetTenantNotResolved toggles the tenant-not-resolved response for sync requests
func (s *Server) SetTenantNotResolved(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unresolved = v
}

// RejectWhen installs a rule returning a non-empty reason for upserts to reject
func (s *Server) RejectWhen(rule func(entity string, up remote.Upsert) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRule = rule
}

// Now advances and returns the server clock. Every call yields a distinct stamp.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick()
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Seed stores a row server-side. A zero UpdatedAt is stamped from the server clock.
func (s *Server) Seed(entity string, row remote.Row) remote.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.tick()
	} else if row.UpdatedAt.After(s.clock) {
		s.clock = row.UpdatedAt
	}
	s.table(entity)[row.ID] = &row
	return row
}

// Row returns a copy of a stored row
func (s *Server) Row(entity, id string) (remote.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[entity][id]
	if !ok {
		return remote.Row{}, false
	}
	return *row, true
}

// RowCount returns the number of rows stored for entity, tombstones included
func (s *Server) RowCount(entity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[entity])
}

// CreateCount returns how many rows were created through push
func (s *Server) CreateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCount
}

// PushCount returns the number of push requests received, failed ones included
func (s *Server) PushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushCount
}

// PullCount returns the number of pull requests received, failed ones included
func (s *Server) PullCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pullCount
}

// LastPush returns the last decoded push request
func (s *Server) LastPush() *remote.PushRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPush
}

// PullQueries returns the raw query strings of all pull requests
func (s *Server) PullQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pullQueries...)
}

// Notify sends a changes message to every websocket subscriber
func (s *Server) Notify(tenantID, entity string) error {
	data, err := json.Marshal(Message{Type: ChangesMessageType, TenantID: tenantID, Entity: entity})
	if err != nil {
		return err
	}
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			_ = conn.Close()
			delete(s.conns, conn)
		}
	}
	return nil
}

// Subscribers returns the number of connected websocket clients
func (s *Server) Subscribers() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) table(entity string) map[string]*remote.Row {
	t, ok := s.rows[entity]
	if !ok {
		t = map[string]*remote.Row{}
		s.rows[entity] = t
	}
	return t
}

// interceptLocked applies queued failures and the tenant switch
func (s *Server) interceptLocked(w http.ResponseWriter) bool {
	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		http.Error(w, http.StatusText(status), status)
		return true
	}
	if s.unresolved {
		http.Error(w, `{"error":"TENANT_NOT_RESOLVED"}`, http.StatusForbidden)
		return true
	}
	return false
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushCount++
	if s.interceptLocked(w) {
		return
	}

	var req remote.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Entity = entity
	s.lastPush = &req

	resp := remote.PushResponse{
		Synced:    []remote.SyncedItem{},
		Conflicts: []remote.ConflictItem{},
		Rejected:  []remote.RejectedItem{},
	}
	changes := req.Changes[entity]
	for _, up := range changes.Upserts {
		s.record(&resp, up.ClientChangeID, func() outcome { return s.applyUpsert(entity, req.TenantID, up) })
	}
	for _, del := range changes.Deletes {
		s.record(&resp, del.ClientChangeID, func() outcome { return s.applyDelete(entity, del) })
	}

	writeJSON(w, resp)
}

// record replays the first outcome for a known client_change_id
func (s *Server) record(resp *remote.PushResponse, changeID string, apply func() outcome) {
	out, ok := s.seen[changeID]
	if !ok {
		out = apply()
		s.seen[changeID] = out
	}
	switch {
	case out.synced != nil:
		resp.Synced = append(resp.Synced, *out.synced)
	case out.conflict != nil:
		resp.Conflicts = append(resp.Conflicts, *out.conflict)
	case out.rejected != nil:
		resp.Rejected = append(resp.Rejected, *out.rejected)
	}
}

func (s *Server) applyUpsert(entity, tenantID string, up remote.Upsert) outcome {
	if s.rejectRule != nil {
		if reason := s.rejectRule(entity, up); reason != "" {
			return outcome{rejected: &remote.RejectedItem{ClientChangeID: up.ClientChangeID, Reason: reason}}
		}
	}

	table := s.table(entity)
	if up.ID == "" || domain.IsTempID(up.ID) {
		row := &remote.Row{
			ID:        "wo-" + uuid.NewString()[:8],
			TenantID:  tenantID,
			UpdatedAt: s.tick(),
			Fields:    up.NewValues.Fields,
		}
		table[row.ID] = row
		s.createCount++
		canonical := *row
		return outcome{synced: &remote.SyncedItem{ClientChangeID: up.ClientChangeID, Row: &canonical}}
	}

	current, ok := table[up.ID]
	if !ok || current.Deleted {
		return outcome{rejected: &remote.RejectedItem{ClientChangeID: up.ClientChangeID, Reason: "record not found"}}
	}
	if up.BaseUpdatedAt == nil || !up.BaseUpdatedAt.Equal(current.UpdatedAt) {
		client := up.NewValues
		client.ID = up.ID
		client.TenantID = tenantID
		server := *current
		return outcome{conflict: &remote.ConflictItem{
			ClientChangeID: up.ClientChangeID,
			ID:             up.ID,
			Client:         &client,
			Server:         &server,
		}}
	}

	current.Fields = up.NewValues.Fields
	current.UpdatedAt = s.tick()
	canonical := *current
	return outcome{synced: &remote.SyncedItem{ClientChangeID: up.ClientChangeID, Row: &canonical}}
}

func (s *Server) applyDelete(entity string, del remote.Delete) outcome {
	if current, ok := s.table(entity)[del.ID]; ok && !current.Deleted {
		current.Deleted = true
		current.UpdatedAt = s.tick()
	}
	return outcome{synced: &remote.SyncedItem{ClientChangeID: del.ClientChangeID}}
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	tenantID := r.Header.Get(remote.TenantHeader)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullCount++
	s.pullQueries = append(s.pullQueries, r.URL.RawQuery)
	if s.interceptLocked(w) {
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
			return
		}
		since = ts
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows := make([]remote.Row, 0)
	for _, row := range s.rows[entity] {
		if tenantID != "" && row.TenantID != "" && row.TenantID != tenantID {
			continue
		}
		if row.UpdatedAt.After(since) {
			rows = append(rows, *row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].UpdatedAt.Before(rows[j].UpdatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}

	resp := remote.PullResponse{Data: rows}
	switch {
	case len(rows) > 0:
		resp.Cursor = domain.Cursor(rows[len(rows)-1].UpdatedAt.UTC().Format(time.RFC3339Nano))
	case !since.IsZero():
		resp.Cursor = domain.Cursor(since.UTC().Format(time.RFC3339Nano))
	}
	writeJSON(w, resp)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()

	go func() {
		defer func() {
			s.connsMu.Lock()
			delete(s.conns, conn)
			s.connsMu.Unlock()
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
