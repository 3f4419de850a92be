package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fieldops/fieldsync/internal/status"
)

// ErrUnknownTenant is returned for a tenant the group does not serve
var ErrUnknownTenant = errors.New("unknown tenant")

// Group runs one Coordinator per tenant. Tenants never share a cycle, a
// cursor or a status file.
type Group struct {
	coordinators map[string]*Coordinator
	ids          []string
	wg           sync.WaitGroup
}

// NewGroup creates a group over coordinators. Duplicate tenants are rejected.
func NewGroup(coordinators ...*Coordinator) (*Group, error) {
	g := &Group{coordinators: make(map[string]*Coordinator, len(coordinators))}
	for _, c := range coordinators {
		if _, exists := g.coordinators[c.TenantID()]; exists {
			return nil, fmt.Errorf("duplicate coordinator for tenant %s", c.TenantID())
		}
		g.coordinators[c.TenantID()] = c
		g.ids = append(g.ids, c.TenantID())
	}
	sort.Strings(g.ids)
	return g, nil
}

// TenantIDs returns the served tenants in lexical order
func (g *Group) TenantIDs() []string {
	return append([]string(nil), g.ids...)
}

// Get returns the coordinator of tenantID
func (g *Group) Get(tenantID string) (*Coordinator, bool) {
	c, ok := g.coordinators[tenantID]
	return c, ok
}

// Start launches every coordinator loop in its own goroutine and returns
func (g *Group) Start(ctx context.Context) {
	for _, id := range g.ids {
		c := g.coordinators[id]
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, ErrStopped) {
				slog.Error("Sync coordinator failed", "tenant", c.TenantID(), "error", err)
			}
		}()
	}
}

// Stop stops every coordinator and waits for their loops to exit
func (g *Group) Stop() error {
	var errs []error
	for _, id := range g.ids {
		if err := g.coordinators[id].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
		}
	}
	g.wg.Wait()
	return errors.Join(errs...)
}

// Trigger requests a cycle for one tenant
func (g *Group) Trigger(tenantID string, source Source) error {
	c, ok := g.coordinators[tenantID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	c.Trigger(source)
	return nil
}

// TriggerAll requests a cycle for every tenant
func (g *Group) TriggerAll(source Source) {
	for _, id := range g.ids {
		g.coordinators[id].Trigger(source)
	}
}

// SyncNow runs one cycle for tenantID on the calling goroutine
func (g *Group) SyncNow(ctx context.Context, tenantID string) (*CycleResult, error) {
	c, ok := g.coordinators[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	return c.SyncNow(ctx)
}

// Status returns a copy of one tenant's status
func (g *Group) Status(tenantID string) (*status.SyncStatus, error) {
	c, ok := g.coordinators[tenantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenantID)
	}
	return c.Status(), nil
}

// Statuses returns a copy of every tenant's status, keyed by tenant
func (g *Group) Statuses() map[string]*status.SyncStatus {
	out := make(map[string]*status.SyncStatus, len(g.coordinators))
	for id, c := range g.coordinators {
		out[id] = c.Status()
	}
	return out
}
