package status

import "time"

// SyncPhase is what a tenant's coordinator is doing right now
type SyncPhase string

const (
	// SyncPhaseIdle means no cycle is running
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhasePushing means local changes are being sent
	SyncPhasePushing SyncPhase = "Pushing"

	// SyncPhasePulling means remote changes are being fetched
	SyncPhasePulling SyncPhase = "Pulling"
)

// Outcome is the result of the last finished cycle
type Outcome string

const (
	// OutcomeSucceeded means push and pull both completed
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomeFailed means the cycle stopped on an error; the queue is intact
	OutcomeFailed Outcome = "Failed"

	// OutcomeSkipped means the server could not resolve the tenant yet
	OutcomeSkipped Outcome = "Skipped"
)

// InterruptedMessage is recorded when a status is found mid-cycle at startup
const InterruptedMessage = "previous sync was interrupted"

// SyncStatus is the persisted view of one tenant's synchronization
type SyncStatus struct {
	// TenantID identifies the tenant this status belongs to
	TenantID string `json:"tenantId"`

	// Phase is the current phase of the coordinator
	Phase SyncPhase `json:"phase"`

	// LastOutcome is the result of the most recent finished cycle
	LastOutcome Outcome `json:"lastOutcome,omitempty"`

	// Message provides additional information about the status
	Message string `json:"message,omitempty"`

	// LastTrigger is the source that started the most recent cycle
	LastTrigger string `json:"lastTrigger,omitempty"`

	// LastAttempt is the timestamp of the last cycle start
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of failed cycles since the last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful cycle
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastError is the error message of the last failed cycle
	LastError string `json:"lastError,omitempty"`

	// Pushed, Pulled, Conflicts and Rejected describe the last finished cycle
	Pushed    int `json:"pushed,omitempty"`
	Pulled    int `json:"pulled,omitempty"`
	Conflicts int `json:"conflicts,omitempty"`
	Rejected  int `json:"rejected,omitempty"`

	// PendingCount is the number of queued changes after the last cycle
	PendingCount int `json:"pendingCount"`

	// SyncInterval is the periodic interval from configuration (e.g. "5m")
	SyncInterval string `json:"syncInterval,omitempty"`
}

// InProgress reports whether the status was saved in the middle of a cycle
func (s *SyncStatus) InProgress() bool {
	return s.Phase == SyncPhasePushing || s.Phase == SyncPhasePulling
}

// RecoverInterrupted resets a status left mid-cycle by a crash or kill.
// It returns true when the status was changed.
func (s *SyncStatus) RecoverInterrupted() bool {
	if !s.InProgress() {
		return false
	}
	s.Phase = SyncPhaseIdle
	s.LastOutcome = OutcomeFailed
	s.Message = InterruptedMessage
	s.AttemptCount++
	return true
}

// Clone returns a deep copy
func (s *SyncStatus) Clone() *SyncStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		c.LastAttempt = &t
	}
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		c.LastSyncTime = &t
	}
	return &c
}
