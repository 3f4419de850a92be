// Package app provides application lifecycle management for the sync agent.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fieldops/fieldsync/internal/app/storage"
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/events"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/sync/coordinator"
	"github.com/fieldops/fieldsync/internal/telemetry"
)

// SyncApp encapsulates all components needed to run the sync agent.
// It provides lifecycle management and graceful shutdown capabilities
type SyncApp struct {
	config         *config.Config
	components     *AppComponents
	httpServer     *http.Server
	storageFactory storage.Factory

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	background sync.WaitGroup
	stopOnce   sync.Once
}

// Start starts the coordinators, the connectivity monitor and the optional
// notification listener in the background, then serves the control API.
// This method blocks until the HTTP server stops or encounters an error
func (app *SyncApp) Start() error {
	app.components.Coordinators.Start(app.ctx)

	app.background.Add(1)
	go func() {
		defer app.background.Done()
		if err := app.components.Connectivity.Start(app.ctx); err != nil {
			slog.Error("Connectivity monitor failed", "error", err)
		}
	}()

	if app.components.Notifications != nil {
		app.background.Add(1)
		go func() {
			defer app.background.Done()
			if err := app.components.Notifications.Run(app.ctx); err != nil {
				slog.Error("Notification listener failed", "error", err)
			}
		}()
	}

	// Start HTTP server (blocks until stopped)
	slog.Info("Control API listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the coordinators, waits for the background loops and then shuts
// down the HTTP server and releases storage
func (app *SyncApp) Stop(timeout time.Duration) error {
	var err error
	app.stopOnce.Do(func() {
		err = app.stop(timeout)
	})
	return err
}

func (app *SyncApp) stop(timeout time.Duration) error {
	slog.Info("Shutting down sync agent...")

	// Stop coordinators first so no cycle starts during shutdown
	if err := app.components.Coordinators.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinators", "error", err)
	}

	// Cancel the application context
	if app.cancelFunc != nil {
		app.cancelFunc()
	}
	app.background.Wait()

	// Graceful HTTP server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := app.httpServer.Shutdown(shutdownCtx)

	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}
	if app.storageFactory != nil {
		app.storageFactory.Cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	slog.Info("Sync agent shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Group returns the per-tenant coordinators
func (app *SyncApp) Group() *coordinator.Group {
	return app.components.Coordinators
}

// Store returns the local store
func (app *SyncApp) Store() store.Store {
	return app.components.Store
}

// Editor returns the local edit queue
func (app *SyncApp) Editor() *edit.Editor {
	return app.components.Editor
}

// Bus returns the sync event bus
func (app *SyncApp) Bus() *events.Bus {
	return app.components.Bus
}

// Monitor returns the connectivity monitor
func (app *SyncApp) Monitor() *connectivity.Monitor {
	return app.components.Connectivity
}

// AttachTelemetry hands ownership of the telemetry providers to the app so
// they are flushed on Stop
func (app *SyncApp) AttachTelemetry(tel *telemetry.Telemetry) {
	app.components.Telemetry = tel
}
