package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops/fieldsync/internal/app"
	"github.com/fieldops/fieldsync/internal/telemetry"
	"github.com/fieldops/fieldsync/internal/versions"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync agent",
		Long: `Run the sync agent until interrupted.

The agent starts one sync coordinator per configured tenant, probes the sync
server for connectivity, optionally listens for change notifications and
serves the local control API.`,
		RunE: runServe,
	}
	cmd.Flags().String("address", "", "Control API address (overrides api.address)")
	cmd.Flags().Duration("shutdown-timeout", defaultGracefulTimeout, "Graceful shutdown timeout")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}
	shutdownTimeout, err := cmd.Flags().GetDuration("shutdown-timeout")
	if err != nil {
		return fmt.Errorf("failed to get shutdown-timeout flag: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, telemetry.Identity{
		Agent:   cfg.GetAgentName(),
		Version: versions.GetVersionInfo().Version,
		Tenants: cfg.TenantIDs(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	opts := []app.SyncAppOptions{
		app.WithConfig(cfg),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
	}
	if address != "" {
		opts = append(opts, app.WithAddress(address))
	}

	syncApp, err := app.NewSyncApp(context.WithoutCancel(ctx), opts...)
	if err != nil {
		shutdownTelemetry(tel)
		return fmt.Errorf("failed to create sync agent: %w", err)
	}
	syncApp.AttachTelemetry(tel)

	errCh := make(chan error, 1)
	go func() {
		errCh <- syncApp.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := syncApp.Stop(shutdownTimeout); stopErr != nil {
			slog.Error("Failed to stop sync agent", "error", stopErr)
		}
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	if err := syncApp.Stop(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down telemetry", "error", err)
	}
}
