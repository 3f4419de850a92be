package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/events"
	"github.com/fieldops/fieldsync/internal/otel"
	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/sync/pull"
	"github.com/fieldops/fieldsync/internal/sync/push"
	"github.com/fieldops/fieldsync/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_engines.go -package=mocks -source=coordinator.go Pusher,Puller

// Source identifies what started a cycle
type Source string

const (
	// SourcePeriodic is the jittered timer
	SourcePeriodic Source = "periodic"
	// SourceConnectivity is an offline to online transition
	SourceConnectivity Source = "connectivity"
	// SourceForeground is the field app coming to the foreground
	SourceForeground Source = "foreground"
	// SourceManual is an explicit user request
	SourceManual Source = "manual"
	// SourceRemote is a change notification from the server
	SourceRemote Source = "remote"
	// SourceStartup is the cycle run when the coordinator starts
	SourceStartup Source = "startup"
	// SourceFollowUp is scheduled when a cycle left work that can proceed right away
	SourceFollowUp Source = "follow_up"
	// SourceLocalEdit is a change queued through the local editor
	SourceLocalEdit Source = "local_edit"
)

// Pusher sends the local queue of a tenant
type Pusher interface {
	Push(ctx context.Context, tenantID string) (*push.Result, error)
}

// Puller merges remote changes of a tenant
type Puller interface {
	Pull(ctx context.Context, tenantID string) (*pull.Result, error)
}

// ErrStopped is returned by SyncNow once the coordinator has been stopped
var ErrStopped = errors.New("coordinator stopped")

// CycleResult describes one finished cycle
type CycleResult struct {
	Trigger  Source
	Push     *push.Result
	Pull     *pull.Result
	Skipped  bool
	Duration time.Duration
}

// Coordinator runs the sync cycles of one tenant
type Coordinator struct {
	tenantID string
	pusher   Pusher
	puller   Puller

	interval   time.Duration
	jitter     float64
	runOnStart bool
	now        func() time.Time

	queue             store.Queue
	statusPersistence status.StatusPersistence
	bus               *events.Bus
	syncMetrics       *telemetry.SyncMetrics
	tracer            trace.Tracer

	// trigger holds at most one pending run request
	trigger chan Source
	// cycleMu serialises cycles between the loop and SyncNow
	cycleMu sync.Mutex

	statusMu   sync.RWMutex
	syncStatus *status.SyncStatus

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	done        chan struct{}
	stopped     bool
}

// New creates a coordinator for tenantID
func New(tenantID string, pusher Pusher, puller Puller, opts ...Option) *Coordinator {
	c := &Coordinator{
		tenantID: tenantID,
		pusher:   pusher,
		puller:   puller,
		interval: DefaultInterval,
		jitter:   DefaultJitter,
		now:      time.Now,
		trigger:  make(chan Source, 1),
		syncStatus: &status.SyncStatus{
			TenantID: tenantID,
			Phase:    status.SyncPhaseIdle,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.syncStatus.SyncInterval = c.interval.String()
	return c
}

// TenantID returns the tenant this coordinator serves
func (c *Coordinator) TenantID() string {
	return c.tenantID
}

// Status returns a copy of the current status
func (c *Coordinator) Status() *status.SyncStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.syncStatus.Clone()
}

// Phase returns the current phase
func (c *Coordinator) Phase() status.SyncPhase {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.syncStatus.Phase
}

// Restore loads the persisted status and resets a cycle that was
// interrupted. Start calls it; one-shot callers of SyncNow may call it first.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.statusPersistence == nil {
		return nil
	}
	loaded, err := c.statusPersistence.LoadStatus(ctx, c.tenantID)
	if err != nil {
		return fmt.Errorf("failed to load sync status: %w", err)
	}
	if loaded.RecoverInterrupted() {
		slog.Warn("Previous sync was interrupted, resetting status",
			"tenant", c.tenantID)
	}
	loaded.TenantID = c.tenantID
	loaded.SyncInterval = c.interval.String()

	c.statusMu.Lock()
	c.syncStatus = loaded
	c.statusMu.Unlock()
	c.persistStatus(ctx)
	return nil
}

// Trigger requests a cycle without blocking. Requests made while a cycle
// is running coalesce into one follow-up cycle.
func (c *Coordinator) Trigger(source Source) {
	select {
	case c.trigger <- source:
		slog.Debug("Sync triggered", "tenant", c.tenantID, "source", source)
	default:
		slog.Debug("Sync already requested, coalescing trigger", "tenant", c.tenantID, "source", source)
	}
}

// Start runs the loop until ctx is cancelled or Stop is called
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.stopped {
		c.lifecycleMu.Unlock()
		return ErrStopped
	}
	if c.cancelFunc != nil {
		c.lifecycleMu.Unlock()
		return fmt.Errorf("coordinator for tenant %s already started", c.tenantID)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})
	done := c.done
	c.lifecycleMu.Unlock()

	defer func() {
		close(done)
		slog.Info("Sync coordinator stopped", "tenant", c.tenantID)
	}()

	if err := c.Restore(loopCtx); err != nil {
		slog.Error("Failed to restore sync status, starting fresh",
			"tenant", c.tenantID,
			"error", err)
	}

	pollingInterval := c.nextInterval()
	slog.Info("Starting sync coordinator",
		"tenant", c.tenantID,
		"base_interval", c.interval,
		"actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	if c.runOnStart {
		c.runLogged(loopCtx, SourceStartup)
	}

	for {
		select {
		case <-loopCtx.Done():
			return nil
		case source := <-c.trigger:
			c.runLogged(loopCtx, source)
		case <-ticker.C:
			c.runLogged(loopCtx, SourcePeriodic)
			ticker.Reset(c.nextInterval())
		}
	}
}

// Stop cancels the loop, including in-flight requests and backoff waits,
// and waits for it to exit
func (c *Coordinator) Stop() error {
	c.lifecycleMu.Lock()
	c.stopped = true
	cancel, done := c.cancelFunc, c.done
	c.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator", "tenant", c.tenantID)
		cancel()
		<-done
	}
	return nil
}

// SyncNow runs one cycle on the calling goroutine, after any cycle in progress
func (c *Coordinator) SyncNow(ctx context.Context) (*CycleResult, error) {
	c.lifecycleMu.Lock()
	stopped := c.stopped
	c.lifecycleMu.Unlock()
	if stopped {
		return nil, ErrStopped
	}
	return c.runCycle(ctx, SourceManual)
}

func (c *Coordinator) runLogged(ctx context.Context, source Source) {
	if _, err := c.runCycle(ctx, source); err != nil && ctx.Err() == nil {
		slog.Debug("Sync cycle ended with error", "tenant", c.tenantID, "error", err)
	}
}

// runCycle performs push then pull. The deferred block guarantees the phase
// returns to Idle and the status is persisted whatever happens.
func (c *Coordinator) runCycle(ctx context.Context, source Source) (result *CycleResult, err error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	ctx, span := otel.StartSpan(ctx, c.tracer, "sync.cycle",
		trace.WithAttributes(
			otel.AttrTenant.String(c.tenantID),
			otel.AttrTrigger.String(string(source)),
		))
	defer span.End()

	start := c.now()
	result = &CycleResult{Trigger: source}

	c.updateStatus(ctx, func(s *status.SyncStatus) {
		t := start.UTC()
		s.LastAttempt = &t
		s.LastTrigger = string(source)
	})
	c.publish(events.Event{Kind: events.KindStart, Trigger: string(source)})
	slog.Info("Starting sync cycle", "tenant", c.tenantID, "trigger", source)

	defer func() {
		result.Duration = c.now().Sub(start)
		c.finish(ctx, result, err)
		if err != nil {
			otel.RecordError(span, err)
		}
	}()

	c.enterPhase(ctx, status.SyncPhasePushing, result, "Pushing local changes")
	pushResult, err := c.pusher.Push(ctx, c.tenantID)
	result.Push = pushResult
	if err != nil {
		return result, fmt.Errorf("push failed: %w", err)
	}
	if pushResult != nil && pushResult.Skipped {
		result.Skipped = true
		return result, nil
	}

	c.enterPhase(ctx, status.SyncPhasePulling, result, "Pulling remote changes")
	pullResult, err := c.puller.Pull(ctx, c.tenantID)
	result.Pull = pullResult
	if err != nil {
		return result, fmt.Errorf("pull failed: %w", err)
	}
	if pullResult != nil && pullResult.Skipped {
		result.Skipped = true
	}
	return result, nil
}

// enterPhase publishes a progress event carrying the counts known so far.
// On the Pulling transition those are the push counts of this cycle.
func (c *Coordinator) enterPhase(ctx context.Context, phase status.SyncPhase, result *CycleResult, message string) {
	pending := c.pendingCount(ctx)
	pushed, pulled, conflicts, rejected := summarize(result)
	c.updateStatus(ctx, func(s *status.SyncStatus) {
		s.Phase = phase
		s.Message = message
		if pending >= 0 {
			s.PendingCount = pending
		}
	})
	c.publish(events.Event{
		Kind:      events.KindProgress,
		Trigger:   string(result.Trigger),
		Phase:     string(phase),
		Message:   message,
		Pushed:    pushed,
		Pulled:    pulled,
		Conflicts: conflicts,
		Rejected:  rejected,
		Pending:   max(pending, 0),
	})
}

// finish records the outcome of a cycle in status, metrics and events, and
// schedules a follow-up when the engines left work they can do right away.
func (c *Coordinator) finish(ctx context.Context, result *CycleResult, cycleErr error) {
	// Status, metrics and events are written even when ctx was cancelled
	statusCtx := context.WithoutCancel(ctx)
	pending := c.pendingCount(statusCtx)
	pushed, pulled, conflicts, rejected := summarize(result)
	success := cycleErr == nil

	c.updateStatus(statusCtx, func(s *status.SyncStatus) {
		s.Phase = status.SyncPhaseIdle
		s.Pushed, s.Pulled, s.Conflicts, s.Rejected = pushed, pulled, conflicts, rejected
		if pending >= 0 {
			s.PendingCount = pending
		}
		switch {
		case cycleErr != nil:
			s.LastOutcome = status.OutcomeFailed
			s.Message = "Sync failed"
			s.LastError = cycleErr.Error()
			s.AttemptCount++
		case result.Skipped:
			s.LastOutcome = status.OutcomeSkipped
			s.Message = "Server has not resolved the tenant yet"
		default:
			now := c.now().UTC()
			s.LastOutcome = status.OutcomeSucceeded
			s.Message = "Sync completed successfully"
			s.LastSyncTime = &now
			s.LastError = ""
			s.AttemptCount = 0
		}
	})

	c.recordMetrics(statusCtx, result, success, pending)

	ev := events.Event{
		Trigger:   string(result.Trigger),
		Phase:     string(status.SyncPhaseIdle),
		Pushed:    pushed,
		Pulled:    pulled,
		Conflicts: conflicts,
		Rejected:  rejected,
		Pending:   max(pending, 0),
	}
	if cycleErr != nil {
		ev.Kind = events.KindError
		ev.Message = cycleErr.Error()
		ev.Err = cycleErr
		slog.Error("Sync cycle failed",
			"tenant", c.tenantID,
			"trigger", result.Trigger,
			"duration", result.Duration,
			"error", cycleErr)
	} else {
		ev.Kind = events.KindComplete
		slog.Info("Sync cycle completed",
			"tenant", c.tenantID,
			"trigger", result.Trigger,
			"duration", result.Duration,
			"pushed", pushed,
			"pulled", pulled,
			"conflicts", conflicts,
			"rejected", rejected,
			"skipped", result.Skipped)
	}
	c.publish(ev)

	if cycleErr == nil && needsFollowUp(result) {
		c.Trigger(SourceFollowUp)
	}
}

func needsFollowUp(result *CycleResult) bool {
	if result.Skipped {
		return false
	}
	if result.Push != nil && result.Push.Deferred > 0 {
		return true
	}
	return result.Pull != nil && result.Pull.HasMore
}

func summarize(result *CycleResult) (pushed, pulled, conflicts, rejected int) {
	if p := result.Push; p != nil {
		pushed = p.Synced
		conflicts += p.Conflicts
		rejected = p.Rejected
	}
	if p := result.Pull; p != nil {
		pulled = p.Applied()
		conflicts += p.Conflicts
	}
	return pushed, pulled, conflicts, rejected
}

func (c *Coordinator) recordMetrics(ctx context.Context, result *CycleResult, success bool, pending int) {
	if c.syncMetrics == nil {
		return
	}
	c.syncMetrics.RecordCycle(ctx, c.tenantID, string(result.Trigger), result.Duration, success)
	if p := result.Push; p != nil {
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPush, telemetry.OutcomeSynced, p.Synced)
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPush, telemetry.OutcomeConflict, p.Conflicts)
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPush, telemetry.OutcomeRejected, p.Rejected)
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPush, telemetry.OutcomeError, p.Errors)
	}
	if p := result.Pull; p != nil {
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPull, telemetry.OutcomeApplied, p.Applied())
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPull, telemetry.OutcomeConflict, p.Conflicts)
		c.syncMetrics.RecordItems(ctx, c.tenantID, telemetry.DirectionPull, telemetry.OutcomeError, p.Errors)
	}
	if pending >= 0 {
		c.syncMetrics.RecordPending(ctx, c.tenantID, pending)
	}
}

// pendingCount returns -1 when no queue is configured or it cannot be read
func (c *Coordinator) pendingCount(ctx context.Context) int {
	if c.queue == nil {
		return -1
	}
	pending, err := c.queue.ListPending(ctx, c.tenantID)
	if err != nil {
		slog.Warn("Failed to count pending changes", "tenant", c.tenantID, "error", err)
		return -1
	}
	return len(pending)
}

// updateStatus applies fn under the status lock and persists the result
func (c *Coordinator) updateStatus(ctx context.Context, fn func(*status.SyncStatus)) {
	c.statusMu.Lock()
	fn(c.syncStatus)
	c.statusMu.Unlock()
	c.persistStatus(ctx)
}

func (c *Coordinator) persistStatus(ctx context.Context) {
	if c.statusPersistence == nil {
		return
	}
	snapshot := c.Status()
	if err := c.statusPersistence.SaveStatus(ctx, c.tenantID, snapshot); err != nil {
		slog.Warn("Failed to persist sync status",
			"tenant", c.tenantID,
			"phase", snapshot.Phase,
			"error", err)
	}
}

func (c *Coordinator) publish(ev events.Event) {
	if c.bus == nil {
		return
	}
	ev.TenantID = c.tenantID
	c.bus.Publish(ev)
}
