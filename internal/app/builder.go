package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/api"
	"github.com/fieldops/fieldsync/internal/app/storage"
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/connectivity"
	"github.com/fieldops/fieldsync/internal/edit"
	"github.com/fieldops/fieldsync/internal/events"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/retry"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/sync/coordinator"
	"github.com/fieldops/fieldsync/internal/sync/pull"
	"github.com/fieldops/fieldsync/internal/sync/push"
	"github.com/fieldops/fieldsync/internal/telemetry"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 60 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// SyncTracerName is the tracer used by the sync engines
	SyncTracerName = "github.com/fieldops/fieldsync/sync"
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the options used to build a SyncApp. It supports
// dependency injection for testing while providing sensible defaults for production
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	remoteClient   remote.Client
	retryOptions   []retry.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Sync behaviour
	runOnStart bool

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		runOnStart:     true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetAPIAddress()
	}
	return cfg, nil
}

// NewSyncApp builds every component from the configuration
func NewSyncApp(ctx context.Context, opts ...SyncAppOptions) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	// The storage factory is the single decision point for sqlite, postgres or memory
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	st, err := cfg.storageFactory.CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create local store: %w", err)
	}

	if cfg.remoteClient == nil {
		cfg.remoteClient, err = buildRemoteClient(cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync client: %w", err)
		}
	}

	components, err := buildSyncComponents(cfg, st)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &SyncApp{
		config:         cfg.config,
		components:     components,
		httpServer:     httpServer,
		storageFactory: cfg.storageFactory,
		ctx:            appCtx,
		cancelFunc:     cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the control API address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithRemoteClient allows injecting a custom sync client (for testing)
func WithRemoteClient(c remote.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.remoteClient = c
		return nil
	}
}

// WithRetryOptions passes extra options to every retry executor
func WithRetryOptions(opts ...retry.Option) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.retryOptions = append(cfg.retryOptions, opts...)
		return nil
	}
}

// WithRunOnStart controls whether each coordinator syncs as soon as it starts
func WithRunOnStart(run bool) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.runOnStart = run
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for sync and HTTP spans
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// buildRemoteClient creates the HTTP client for the configured server
func buildRemoteClient(cfg *config.Config) (remote.Client, error) {
	opts := []remote.Option{}
	if timeout := cfg.GetServerTimeout(); timeout > 0 {
		opts = append(opts, remote.WithTimeout(timeout))
	}
	if marker := cfg.Server.TenantNotResolvedMarker; marker != "" {
		opts = append(opts, remote.WithTenantNotResolvedMarker(marker))
	}
	if limit := cfg.Server.MaxResponseBytes; limit > 0 {
		opts = append(opts, remote.WithMaxResponseSize(limit))
	}
	if tokenFile := cfg.Server.TokenFile; tokenFile != "" {
		opts = append(opts, remote.WithTokenSource(fileTokenSource(tokenFile)))
	}
	return remote.NewHTTPClient(cfg.Server.Endpoint, opts...)
}

// fileTokenSource re-reads the token on every request so rotated tokens are picked up
func fileTokenSource(path string) func() (string, error) {
	return func() (string, error) {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the agent configuration
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}

// retryConfig maps the configuration onto the executor settings. Unset
// values fall back to the executor defaults.
func retryConfig(rc *config.RetryConfig) retry.Config {
	c := retry.Config{
		InitialDelay: rc.GetInitialDelay(),
		MaxDelay:     rc.GetMaxDelay(),
		Jitter:       retry.DefaultJitter,
	}
	if rc != nil {
		c.Factor = rc.Factor
		c.MaxAttempts = rc.MaxAttempts
		if rc.Jitter != nil {
			c.Jitter = *rc.Jitter
		}
	}
	return c
}

// newRetrier creates an executor that counts its retries under operation
func (b *syncAppConfig) newRetrier(operation string, metrics *telemetry.SyncMetrics) *retry.Executor {
	opts := []retry.Option{
		retry.WithRetryHook(func(attempt int, err error, delay time.Duration) {
			slog.Debug("Scheduling retry",
				"operation", operation,
				"attempt", attempt,
				"delay", delay,
				"error", err)
			metrics.RecordRetry(context.Background(), operation)
		}),
	}
	opts = append(opts, b.retryOptions...)
	return retry.New(retryConfig(b.config.Retry), opts...)
}

// buildSyncComponents builds the engines, one coordinator per tenant, and
// the signal sources that trigger them
func buildSyncComponents(b *syncAppConfig, st store.Store) (*AppComponents, error) {
	slog.Info("Initializing sync components", "tenants", len(b.config.Tenants))

	var syncMetrics *telemetry.SyncMetrics
	if b.meterProvider != nil {
		var err error
		syncMetrics, err = telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		slog.Info("Sync metrics enabled")
	}

	var tracer trace.Tracer
	if b.tracerProvider != nil {
		tracer = b.tracerProvider.Tracer(SyncTracerName)
	}

	pushRetrier := b.newRetrier("push", syncMetrics)
	pullRetrier := b.newRetrier("pull", syncMetrics)
	statusPersistence := b.storageFactory.CreateStatusPersistence()
	bus := events.NewBus()

	coordinators := make([]*coordinator.Coordinator, 0, len(b.config.Tenants))
	for _, tenantID := range b.config.TenantIDs() {
		pusher := push.New(st, b.remoteClient, pushRetrier, push.WithTracer(tracer))
		puller := pull.New(st, b.remoteClient, pullRetrier,
			pull.WithEntities(b.config.EntitiesFor(tenantID)...),
			pull.WithPageSize(b.config.GetPullPageSize()),
			pull.WithMaxPages(b.config.GetMaxPullPages()),
			pull.WithTracer(tracer),
		)

		opts := []coordinator.Option{
			coordinator.WithInterval(b.config.GetSyncInterval()),
			coordinator.WithRunOnStart(b.runOnStart),
			coordinator.WithQueue(st),
			coordinator.WithEventBus(bus),
			coordinator.WithSyncMetrics(syncMetrics),
			coordinator.WithTracer(tracer),
		}
		if statusPersistence != nil {
			opts = append(opts, coordinator.WithStatusPersistence(statusPersistence))
		}
		coordinators = append(coordinators, coordinator.New(tenantID, pusher, puller, opts...))
	}

	group, err := coordinator.NewGroup(coordinators...)
	if err != nil {
		return nil, err
	}

	monitor := connectivity.New(b.remoteClient,
		connectivity.WithInterval(b.config.GetProbeInterval()),
		connectivity.WithProbeTimeout(min(connectivity.DefaultProbeTimeout, b.config.GetProbeInterval())))
	monitor.OnRegained(func() {
		slog.Info("Connectivity regained, triggering sync")
		group.TriggerAll(coordinator.SourceConnectivity)
	})

	editor := edit.New(st, edit.WithNotifier(func(tenantID string) {
		if err := group.Trigger(tenantID, coordinator.SourceLocalEdit); err != nil {
			slog.Warn("Local edit for a tenant that is not synced", "tenant", tenantID)
		}
	}))

	var listener *notify.Listener
	if notifyURL := b.config.Server.NotifyURL; notifyURL != "" {
		notifyOpts := []notify.Option{notify.WithRetrier(b.newRetrier("notify", syncMetrics))}
		if tokenFile := b.config.Server.TokenFile; tokenFile != "" {
			notifyOpts = append(notifyOpts, notify.WithTokenSource(fileTokenSource(tokenFile)))
		}
		listener, err = notify.New(notifyURL, func(msg notify.Message) {
			if err := group.Trigger(msg.TenantID, coordinator.SourceRemote); err != nil {
				slog.Debug("Ignoring change notification", "tenant", msg.TenantID, "error", err)
			}
		}, notifyOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create notification listener: %w", err)
		}
		slog.Info("Change notifications enabled", "url", notifyURL)
	}

	slog.Info("Sync components initialized successfully")
	return &AppComponents{
		Coordinators:  group,
		Store:         st,
		Editor:        editor,
		Bus:           bus,
		Connectivity:  monitor,
		Notifications: listener,
	}, nil
}

// buildHTTPServer builds the control API server with router and middleware
func buildHTTPServer(b *syncAppConfig, components *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first so it sees every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
		}
		telemetryMiddlewares = append(telemetryMiddlewares, httpMetrics.Middleware)
		slog.Info("HTTP metrics middleware enabled")
	}
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
	}
	b.middlewares = append(telemetryMiddlewares, b.middlewares...)

	router := api.NewServer(
		components.Coordinators,
		components.Connectivity,
		components.Store,
		components.Editor,
		api.WithMiddlewares(b.middlewares...),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
