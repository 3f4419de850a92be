package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/app"
	"github.com/fieldops/fieldsync/internal/sync/coordinator"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and exit",
		Long: `Run a single push-then-pull cycle for every configured tenant, or for
the tenant given with --tenant, and print a summary of each cycle.`,
		RunE: runSync,
	}
	cmd.Flags().String("tenant", "", "Only sync this tenant")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tenant, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}

	syncApp, err := app.NewSyncApp(ctx, app.WithConfig(cfg), app.WithRunOnStart(false))
	if err != nil {
		return fmt.Errorf("failed to create sync agent: %w", err)
	}
	defer func() {
		if err := syncApp.Stop(5 * time.Second); err != nil {
			slog.Error("Failed to stop sync agent", "error", err)
		}
	}()

	tenants := syncApp.Group().TenantIDs()
	if tenant != "" {
		tenants = []string{tenant}
	}

	var failed int
	for _, id := range tenants {
		c, ok := syncApp.Group().Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", coordinator.ErrUnknownTenant, id)
		}
		if err := c.Restore(ctx); err != nil {
			slog.Warn("Failed to restore sync status", "tenant", id, "error", err)
		}

		result, err := c.SyncNow(ctx)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: failed: %v\n", id, err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, summarize(result))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tenants failed to sync", failed, len(tenants))
	}
	return nil
}

// summarize renders one cycle result on a single line
func summarize(r *coordinator.CycleResult) string {
	if r.Skipped {
		return fmt.Sprintf("skipped (%s)", r.Duration.Round(time.Millisecond))
	}
	var pushed, conflicts, rejected, pulled int
	if r.Push != nil {
		pushed = r.Push.Synced
		conflicts += r.Push.Conflicts
		rejected = r.Push.Rejected
	}
	if r.Pull != nil {
		pulled = r.Pull.Applied()
		conflicts += r.Pull.Conflicts
	}
	return fmt.Sprintf("pushed=%d pulled=%d conflicts=%d rejected=%d (%s)",
		pushed, pulled, conflicts, rejected, r.Duration.Round(time.Millisecond))
}
