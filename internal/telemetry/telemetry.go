package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Telemetry holds the providers handed to the sync components and the
// shutdown hooks of whichever of them export data
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	flushers       []flusher
}

type flusher struct {
	signal   string
	shutdown func(context.Context) error
}

// New sets up tracing and metrics for the agent described by id. Signals
// that cfg leaves disabled get no-op providers, so callers never branch on
// configuration. Shutdown must be called on exit.
func New(ctx context.Context, cfg *Config, id Identity) (*Telemetry, error) {
	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry disabled")
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	traced, ratio := cfg.tracing()
	metered := cfg.metrics()
	if !traced && !metered {
		slog.Info("Telemetry enabled without any signal, nothing is exported")
		return t, nil
	}

	res, err := id.resource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	target := exportTarget{endpoint: cfg.collector(), insecure: cfg.Insecure}

	if traced {
		tp, err := newTracerProvider(ctx, res, target, ratio)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		t.tracerProvider = tp
		t.flushers = append(t.flushers, flusher{signal: "tracer", shutdown: tp.Shutdown})
	}
	if metered {
		mp, err := newMeterProvider(ctx, res, target)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create meter provider: %w", err)
		}
		t.meterProvider = mp
		t.flushers = append(t.flushers, flusher{signal: "meter", shutdown: mp.Shutdown})
	}

	if cfg.Insecure {
		slog.Warn("Telemetry is exported over unencrypted HTTP", "endpoint", target.endpoint)
	}
	slog.Info("Telemetry initialized",
		"agent", id.Agent,
		"tenants", len(id.Tenants),
		"endpoint", target.endpoint,
		"tracing", traced,
		"sampling_ratio", ratio,
		"metrics", metered)
	return t, nil
}

// TracerProvider returns the configured tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Tracer returns a named tracer from the tracer provider
func (t *Telemetry) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return t.tracerProvider.Tracer(name, opts...)
}

// Shutdown flushes pending spans and metrics. It is safe to call on a
// Telemetry whose signals are all disabled.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if len(t.flushers) == 0 {
		return nil
	}
	slog.Info("Shutting down telemetry")

	var errs []error
	for _, f := range t.flushers {
		if err := f.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown %s provider: %w", f.signal, err))
		}
	}
	t.flushers = nil
	return errors.Join(errs...)
}
