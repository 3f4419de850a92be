// Package coordinator schedules and sequences sync cycles for one tenant.
//
// A Coordinator owns a single loop goroutine. Cycles are started by the
// periodic timer, by Trigger from any goroutine, or synchronously through
// SyncNow. Every cycle pushes the local queue to completion before it pulls
// remote changes:
//
//	Idle -> Pushing -> Pulling -> Idle
//
// Any error returns the coordinator to Idle with the queue untouched; the
// next trigger retries from scratch.
//
// # Single flight
//
// Cycles never overlap. Trigger never blocks: it drops the signal into a
// buffer of one, so any number of triggers that arrive while a cycle is
// running collapse into exactly one follow-up cycle.
//
// # Usage
//
//	c := coordinator.New(tenantID, pushEngine, pullEngine,
//	    coordinator.WithInterval(cfg.GetSyncInterval()),
//	    coordinator.WithStatusPersistence(status.NewFileStatusPersistence(dir)),
//	    coordinator.WithEventBus(bus),
//	)
//	go c.Start(ctx)
//	...
//	c.Trigger(coordinator.SourceForeground)
//	...
//	c.Stop()
//
// # Status
//
// The coordinator keeps a status.SyncStatus in memory, guarded by a mutex,
// and persists it at every phase transition. A status found in Pushing or
// Pulling at startup belongs to a cycle that never finished and is reset to
// Idle.
package coordinator
