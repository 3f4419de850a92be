package app

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/app/storage"
	"github.com/fieldops/fieldsync/internal/status"
)

// tenantReport is the status command output for one tenant
type tenantReport struct {
	Status  *status.SyncStatus `json:"status"`
	Pending int                `json:"pending"`
	Failed  int                `json:"failed"`
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the persisted sync status of every tenant",
		RunE:  runStatus,
	}
	cmd.Flags().String("tenant", "", "Only report this tenant")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tenants := cfg.TenantIDs()
	tenant, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}
	if tenant != "" {
		if !slices.Contains(tenants, tenant) {
			return fmt.Errorf("tenant %s is not configured", tenant)
		}
		tenants = []string{tenant}
	}

	factory, err := storage.NewStorageFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	st, err := factory.CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	persistence := factory.CreateStatusPersistence()

	report := make(map[string]tenantReport, len(tenants))
	for _, id := range tenants {
		entry := tenantReport{Status: &status.SyncStatus{TenantID: id, Phase: status.SyncPhaseIdle}}
		if persistence != nil {
			entry.Status, err = persistence.LoadStatus(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load status of %s: %w", id, err)
			}
		}
		pending, err := st.ListPending(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list pending changes of %s: %w", id, err)
		}
		failed, err := st.ListFailed(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list failed changes of %s: %w", id, err)
		}
		entry.Pending = len(pending)
		entry.Failed = len(failed)
		report[id] = entry
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format status: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return err
}
