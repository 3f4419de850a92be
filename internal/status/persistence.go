// Package status provides per-tenant sync status tracking and persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the sync status of a tenant
	SaveStatus(ctx context.Context, tenantID string, status *SyncStatus) error

	// LoadStatus loads the sync status of a tenant.
	// Returns an idle SyncStatus if nothing was saved yet (first run)
	LoadStatus(ctx context.Context, tenantID string) (*SyncStatus, error)

	// LoadAllStatus loads sync status for all tenants
	LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// Every tenant gets its own directory below basePath.
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

func (f *fileStatusPersistence) tenantDir(tenantID string) (string, error) {
	if tenantID == "" || !filepath.IsLocal(tenantID) || filepath.Base(tenantID) != tenantID {
		return "", fmt.Errorf("invalid tenant id '%s' for status path", tenantID)
	}
	return filepath.Join(f.basePath, tenantID), nil
}

// SaveStatus writes the status to a temporary file and renames it into place
func (f *fileStatusPersistence) SaveStatus(_ context.Context, tenantID string, status *SyncStatus) error {
	dir, err := f.tenantDir(tenantID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for tenant '%s': %w", tenantID, err)
	}

	filePath := filepath.Join(dir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for tenant '%s': %w", tenantID, err)
	}

	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for tenant '%s': %w", tenantID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for tenant '%s': %w", tenantID, err)
	}

	return nil
}

// LoadStatus reads the status file of a tenant
func (f *fileStatusPersistence) LoadStatus(_ context.Context, tenantID string) (*SyncStatus, error) {
	dir, err := f.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}
	filePath := filepath.Join(dir, StatusFileName)

	// #nosec G304 -- filePath is basePath plus a validated single path element
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncStatus{TenantID: tenantID, Phase: SyncPhaseIdle}, nil
		}
		return nil, fmt.Errorf("failed to read status file for tenant '%s': %w", tenantID, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for tenant '%s': %w", tenantID, err)
	}
	if status.TenantID == "" {
		status.TenantID = tenantID
	}
	if status.Phase == "" {
		status.Phase = SyncPhaseIdle
	}

	return &status, nil
}

// LoadAllStatus loads sync status for all tenants found below the base path
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error) {
	result := make(map[string]*SyncStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		tenantID := entry.Name()
		status, err := f.LoadStatus(ctx, tenantID)
		if err != nil {
			slog.Warn("Skipping unreadable sync status", "tenant", tenantID, "error", err)
			continue
		}

		result[tenantID] = status
	}

	return result, nil
}
