package app

import (
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/events"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/sync/coordinator"
	"github.com/fieldops/fieldsync/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Coordinators runs one sync coordinator per tenant
	Coordinators *coordinator.Group

	// Store is the local store shared by every tenant
	Store store.Store

	// Editor queues local edits
	Editor *edit.Editor

	// Bus delivers sync events to observers
	Bus *events.Bus

	// Connectivity tracks reachability of the sync server
	Connectivity *connectivity.Monitor

	// Notifications is the optional server change listener
	Notifications *notify.Listener

	// Telemetry owns the tracer and meter providers (optional)
	Telemetry *telemetry.Telemetry
}
