package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTenantID = "acme"

func TestFileStatusPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	persistence := NewFileStatusPersistence(tmpDir)
	require.NotNil(t, persistence)

	now := time.Now().UTC()
	testStatus := &SyncStatus{
		TenantID:     testTenantID,
		Phase:        SyncPhaseIdle,
		LastOutcome:  OutcomeSucceeded,
		Message:      "Sync completed",
		LastTrigger:  "periodic",
		LastAttempt:  &now,
		LastSyncTime: &now,
		Pushed:       3,
		Pulled:       12,
		Conflicts:    1,
		PendingCount: 0,
		SyncInterval: "5m",
	}

	ctx := context.Background()
	err := persistence.SaveStatus(ctx, testTenantID, testStatus)
	require.NoError(t, err)

	expectedPath := filepath.Join(tmpDir, testTenantID, StatusFileName)
	_, err = os.Stat(expectedPath)
	require.NoError(t, err)

	loaded, err := persistence.LoadStatus(ctx, testTenantID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, testStatus.Phase, loaded.Phase)
	require.Equal(t, testStatus.LastOutcome, loaded.LastOutcome)
	require.Equal(t, testStatus.Message, loaded.Message)
	require.Equal(t, testStatus.LastTrigger, loaded.LastTrigger)
	require.Equal(t, 3, loaded.Pushed)
	require.Equal(t, 12, loaded.Pulled)
	require.Equal(t, 1, loaded.Conflicts)
	require.Equal(t, "5m", loaded.SyncInterval)
	require.NotNil(t, loaded.LastSyncTime)
	require.True(t, now.Equal(*loaded.LastSyncTime))
}

func TestFileStatusPersistence_LoadNonExistent(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(t.TempDir())

	loaded, err := persistence.LoadStatus(context.Background(), testTenantID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, SyncPhaseIdle, loaded.Phase)
	require.Equal(t, testTenantID, loaded.TenantID)
	require.Empty(t, loaded.Message)
}

func TestFileStatusPersistence_UpdateStatus(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(t.TempDir())
	ctx := context.Background()

	now1 := time.Now()
	err := persistence.SaveStatus(ctx, testTenantID, &SyncStatus{
		Phase:       SyncPhasePushing,
		Message:     "Pushing local changes",
		LastAttempt: &now1,
	})
	require.NoError(t, err)

	now2 := time.Now()
	err = persistence.SaveStatus(ctx, testTenantID, &SyncStatus{
		Phase:        SyncPhaseIdle,
		LastOutcome:  OutcomeFailed,
		Message:      "push failed",
		LastAttempt:  &now2,
		AttemptCount: 2,
		LastError:    "HTTP 502",
		PendingCount: 4,
	})
	require.NoError(t, err)

	loaded, err := persistence.LoadStatus(ctx, testTenantID)
	require.NoError(t, err)
	require.Equal(t, SyncPhaseIdle, loaded.Phase)
	require.Equal(t, OutcomeFailed, loaded.LastOutcome)
	require.Equal(t, 2, loaded.AttemptCount)
	require.Equal(t, "HTTP 502", loaded.LastError)
	require.Equal(t, 4, loaded.PendingCount)
}

func TestFileStatusPersistence_AtomicWrite(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)

	now := time.Now()
	err := persistence.SaveStatus(context.Background(), testTenantID, &SyncStatus{
		Phase:       SyncPhaseIdle,
		LastAttempt: &now,
	})
	require.NoError(t, err)

	statusPath := filepath.Join(tmpDir, testTenantID, StatusFileName)
	_, err = os.Stat(statusPath + ".tmp")
	require.True(t, os.IsNotExist(err), "Temporary file should not exist after save")
}

func TestFileStatusPersistence_RejectsUnsafeTenantIDs(t *testing.T) {
	t.Parallel()

	persistence := NewFileStatusPersistence(t.TempDir())
	ctx := context.Background()

	for _, tenantID := range []string{"", "../escape", "a/b", "/abs"} {
		err := persistence.SaveStatus(ctx, tenantID, &SyncStatus{})
		require.Error(t, err, tenantID)
		_, err = persistence.LoadStatus(ctx, tenantID)
		require.Error(t, err, tenantID)
	}
}

func TestFileStatusPersistence_LoadAllStatus(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, persistence.SaveStatus(ctx, "tenant1", &SyncStatus{
		Phase: SyncPhaseIdle, LastOutcome: OutcomeSucceeded, LastAttempt: &now, Pulled: 5,
	}))
	require.NoError(t, persistence.SaveStatus(ctx, "tenant2", &SyncStatus{
		Phase: SyncPhasePulling, LastAttempt: &now,
	}))
	require.NoError(t, persistence.SaveStatus(ctx, "tenant3", &SyncStatus{
		Phase: SyncPhaseIdle, LastOutcome: OutcomeSkipped, Message: "tenant not resolved",
	}))

	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.Len(t, result, 3)

	require.Equal(t, OutcomeSucceeded, result["tenant1"].LastOutcome)
	require.Equal(t, 5, result["tenant1"].Pulled)
	require.Equal(t, "tenant1", result["tenant1"].TenantID)
	require.Equal(t, SyncPhasePulling, result["tenant2"].Phase)
	require.Equal(t, OutcomeSkipped, result["tenant3"].LastOutcome)
	require.Equal(t, "tenant not resolved", result["tenant3"].Message)
}

func TestFileStatusPersistence_LoadAllStatus_EmptyDirectory(t *testing.T) {
	t.Parallel()

	result, err := NewFileStatusPersistence(t.TempDir()).LoadAllStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestFileStatusPersistence_LoadAllStatus_NonExistentDirectory(t *testing.T) {
	t.Parallel()

	tmpDir := filepath.Join(t.TempDir(), "nonexistent")
	result, err := NewFileStatusPersistence(tmpDir).LoadAllStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestFileStatusPersistence_LoadAllStatus_PartialFailure(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	persistence := NewFileStatusPersistence(tmpDir)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, persistence.SaveStatus(ctx, "tenant1", &SyncStatus{Phase: SyncPhaseIdle, LastAttempt: &now}))

	invalidDir := filepath.Join(tmpDir, "invalid-tenant")
	require.NoError(t, os.MkdirAll(invalidDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(invalidDir, StatusFileName), []byte("{invalid json}"), 0600))

	result, err := persistence.LoadAllStatus(ctx)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Contains(t, result, "tenant1")
	require.NotContains(t, result, "invalid-tenant")
}
