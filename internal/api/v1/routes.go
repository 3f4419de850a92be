// Package v1 provides the local control API used by the field application:
// lifecycle signals, manual sync, status, and local edits.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/fieldsync/internal/api/common"
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/domain"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/sync/coordinator"
)

//go:generate mockgen -destination=mocks/mock_routes.go -package=mocks -source=routes.go SyncGroup

const (
	maxBodyBytes        = 1 << 20
	defaultConflictPage = 100
)

// SyncGroup is the per-tenant sync runtime driven by the API
type SyncGroup interface {
	TenantIDs() []string
	Trigger(tenantID string, source coordinator.Source) error
	TriggerAll(source coordinator.Source)
	SyncNow(ctx context.Context, tenantID string) (*coordinator.CycleResult, error)
	Status(tenantID string) (*status.SyncStatus, error)
}

// Connectivity receives online/offline reports from the platform
type Connectivity interface {
	SetOnline(online bool)
	State() connectivity.State
}

// Store is the read side of the local store exposed by the API
type Store interface {
	store.Records
	store.ConflictLog
	store.FailedChanges
	ListPending(ctx context.Context, tenantID string) ([]domain.PendingChange, error)
}

// ConnectivityRequest reports the device network state
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

// ConnectivityResponse echoes the monitor state
type ConnectivityResponse struct {
	State string `json:"state"`
}

// TriggerResponse acknowledges an accepted trigger
type TriggerResponse struct {
	Status  string   `json:"status"`
	Tenants []string `json:"tenants"`
}

// CycleResponse summarises a cycle run with ?wait=true
type CycleResponse struct {
	Trigger    string             `json:"trigger"`
	Skipped    bool               `json:"skipped"`
	DurationMS int64              `json:"duration_ms"`
	Pushed     int                `json:"pushed"`
	Pulled     int                `json:"pulled"`
	Conflicts  int                `json:"conflicts"`
	Rejected   int                `json:"rejected"`
	Status     *status.SyncStatus `json:"status,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Routes holds the control API dependencies
type Routes struct {
	group        SyncGroup
	connectivity Connectivity
	store        Store
	editor       *edit.Editor
}

// NewRoutes creates the control API handlers
func NewRoutes(group SyncGroup, conn Connectivity, st Store, editor *edit.Editor) *Routes {
	return &Routes{
		group:        group,
		connectivity: conn,
		store:        st,
		editor:       editor,
	}
}

// Router mounts the control API
func Router(group SyncGroup, conn Connectivity, st Store, editor *edit.Editor) http.Handler {
	routes := NewRoutes(group, conn, st, editor)

	r := chi.NewRouter()
	r.Post("/foreground", routes.foreground)
	r.Post("/connectivity", routes.setConnectivity)
	r.Get("/connectivity", routes.getConnectivity)

	r.Get("/tenants", routes.listTenants)
	r.Route("/tenants/{tenant}", func(r chi.Router) {
		r.Use(routes.requireTenant)
		r.Post("/sync", routes.syncTenant)
		r.Get("/status", routes.getStatus)
		r.Get("/pending", routes.listPending)
		r.Get("/failed", routes.listFailed)
		r.Get("/conflicts", routes.listConflicts)

		r.Get("/records/{entity}", routes.listRecords)
		r.Post("/records/{entity}", routes.createRecord)
		r.Get("/records/{entity}/{id}", routes.getRecord)
		r.Put("/records/{entity}/{id}", routes.updateRecord)
		r.Delete("/records/{entity}/{id}", routes.deleteRecord)
	})
	return r
}

type tenantKey struct{}

func tenantFrom(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey{}).(string)
	return id
}

// requireTenant rejects tenants the agent does not sync
func (rr *Routes) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := common.PathParam(r, "tenant")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := rr.group.Status(tenantID); err != nil {
			common.WriteErrorResponse(w, "unknown tenant: "+tenantID, http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// foreground handles POST /api/v1/foreground
func (rr *Routes) foreground(w http.ResponseWriter, _ *http.Request) {
	rr.group.TriggerAll(coordinator.SourceForeground)
	common.WriteJSONResponse(w, TriggerResponse{
		Status:  "accepted",
		Tenants: rr.group.TenantIDs(),
	}, http.StatusAccepted)
}

// setConnectivity handles POST /api/v1/connectivity
func (rr *Routes) setConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if err := decodeBody(r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Online == nil {
		common.WriteErrorResponse(w, "online is required", http.StatusBadRequest)
		return
	}
	rr.connectivity.SetOnline(*req.Online)
	common.WriteJSONResponse(w, ConnectivityResponse{State: rr.connectivity.State().String()}, http.StatusOK)
}

// getConnectivity handles GET /api/v1/connectivity
func (rr *Routes) getConnectivity(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, ConnectivityResponse{State: rr.connectivity.State().String()}, http.StatusOK)
}

// listTenants handles GET /api/v1/tenants
func (rr *Routes) listTenants(w http.ResponseWriter, _ *http.Request) {
	statuses := make([]*status.SyncStatus, 0)
	for _, id := range rr.group.TenantIDs() {
		st, err := rr.group.Status(id)
		if err != nil {
			continue
		}
		statuses = append(statuses, st)
	}
	common.WriteJSONResponse(w, statuses, http.StatusOK)
}

// syncTenant handles POST /api/v1/tenants/{tenant}/sync. By default the
// cycle is queued; with ?wait=true it runs before the response is written.
func (rr *Routes) syncTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r.Context())

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		if err := rr.group.Trigger(tenantID, coordinator.SourceManual); err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
			return
		}
		common.WriteJSONResponse(w, TriggerResponse{
			Status:  "accepted",
			Tenants: []string{tenantID},
		}, http.StatusAccepted)
		return
	}

	result, err := rr.group.SyncNow(r.Context(), tenantID)
	resp := cycleResponse(result)
	resp.Status, _ = rr.group.Status(tenantID)
	switch {
	case errors.Is(err, coordinator.ErrStopped):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		resp.Error = err.Error()
		common.WriteJSONResponse(w, resp, http.StatusBadGateway)
	default:
		common.WriteJSONResponse(w, resp, http.StatusOK)
	}
}

func cycleResponse(result *coordinator.CycleResult) *CycleResponse {
	resp := &CycleResponse{}
	if result == nil {
		return resp
	}
	resp.Trigger = string(result.Trigger)
	resp.Skipped = result.Skipped
	resp.DurationMS = result.Duration.Milliseconds()
	if result.Push != nil {
		resp.Pushed = result.Push.Synced
		resp.Conflicts += result.Push.Conflicts
		resp.Rejected = result.Push.Rejected
	}
	if result.Pull != nil {
		resp.Pulled = result.Pull.Applied()
		resp.Conflicts += result.Pull.Conflicts
	}
	return resp
}

// getStatus handles GET /api/v1/tenants/{tenant}/status
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := rr.group.Status(tenantFrom(r.Context()))
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, st, http.StatusOK)
}

// listPending handles GET /api/v1/tenants/{tenant}/pending
func (rr *Routes) listPending(w http.ResponseWriter, r *http.Request) {
	pending, err := rr.store.ListPending(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		rr.internalError(w, "Failed to list pending changes", err)
		return
	}
	common.WriteJSONResponse(w, nonNil(pending), http.StatusOK)
}

// listFailed handles GET /api/v1/tenants/{tenant}/failed
func (rr *Routes) listFailed(w http.ResponseWriter, r *http.Request) {
	failed, err := rr.store.ListFailed(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		rr.internalError(w, "Failed to list failed changes", err)
		return
	}
	common.WriteJSONResponse(w, nonNil(failed), http.StatusOK)
}

// listConflicts handles GET /api/v1/tenants/{tenant}/conflicts?limit=N
func (rr *Routes) listConflicts(w http.ResponseWriter, r *http.Request) {
	limit := defaultConflictPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			common.WriteErrorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := rr.store.ListConflicts(r.Context(), tenantFrom(r.Context()), limit)
	if err != nil {
		rr.internalError(w, "Failed to list conflicts", err)
		return
	}
	common.WriteJSONResponse(w, nonNil(entries), http.StatusOK)
}

// listRecords handles GET /api/v1/tenants/{tenant}/records/{entity}
func (rr *Routes) listRecords(w http.ResponseWriter, r *http.Request) {
	entity, err := common.PathParam(r, "entity")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := rr.store.ListRecords(r.Context(), tenantFrom(r.Context()), entity)
	if err != nil {
		rr.internalError(w, "Failed to list records", err)
		return
	}
	common.WriteJSONResponse(w, nonNil(records), http.StatusOK)
}

// getRecord handles GET /api/v1/tenants/{tenant}/records/{entity}/{id}
func (rr *Routes) getRecord(w http.ResponseWriter, r *http.Request) {
	entity, id, ok := recordParams(w, r)
	if !ok {
		return
	}
	rec, err := rr.store.GetRecord(r.Context(), tenantFrom(r.Context()), entity, id)
	if err != nil {
		rr.editError(w, err)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusOK)
}

// createRecord handles POST /api/v1/tenants/{tenant}/records/{entity}
func (rr *Routes) createRecord(w http.ResponseWriter, r *http.Request) {
	entity, err := common.PathParam(r, "entity")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := rr.editor.Create(r.Context(), tenantFrom(r.Context()), entity, payload)
	if err != nil {
		rr.editError(w, err)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusCreated)
}

// updateRecord handles PUT /api/v1/tenants/{tenant}/records/{entity}/{id}
func (rr *Routes) updateRecord(w http.ResponseWriter, r *http.Request) {
	entity, id, ok := recordParams(w, r)
	if !ok {
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := rr.editor.Update(r.Context(), tenantFrom(r.Context()), entity, id, payload)
	if err != nil {
		rr.editError(w, err)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusOK)
}

// deleteRecord handles DELETE /api/v1/tenants/{tenant}/records/{entity}/{id}
func (rr *Routes) deleteRecord(w http.ResponseWriter, r *http.Request) {
	entity, id, ok := recordParams(w, r)
	if !ok {
		return
	}
	if err := rr.editor.Delete(r.Context(), tenantFrom(r.Context()), entity, id); err != nil {
		rr.editError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rr *Routes) editError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.WriteErrorResponse(w, "record not found", http.StatusNotFound)
	case errors.Is(err, edit.ErrInvalidPayload):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		rr.internalError(w, "Failed to apply local edit", err)
	}
}

func (*Routes) internalError(w http.ResponseWriter, message string, err error) {
	slog.Error(message, "error", err)
	common.WriteErrorResponse(w, message, http.StatusInternalServerError)
}

func recordParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	entity, err := common.PathParam(r, "entity")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", "", false
	}
	id, err := common.PathParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return "", "", false
	}
	return entity, id, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func readPayload(r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if len(data) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	return json.RawMessage(data), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
