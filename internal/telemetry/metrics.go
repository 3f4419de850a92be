package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the instrumentation scope of the sync metrics
const SyncMetricsMeterName = "github.com/fieldops/fieldsync/sync"

// Item outcomes reported by RecordItems
const (
	OutcomeSynced   = "synced"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeApplied  = "applied"
)

// Sync directions
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// SyncMetrics holds the instruments recorded by the coordinator and the retry executor.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	cycleDuration metric.Float64Histogram
	items         metric.Int64Counter
	retries       metric.Int64Counter
	pending       metric.Int64Gauge
}

// NewSyncMetrics creates the sync instruments. A nil provider yields nil metrics.
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"fieldsync_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	items, err := meter.Int64Counter(
		"fieldsync_items_total",
		metric.WithDescription("Changes pushed and rows pulled, by outcome"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"fieldsync_retries_total",
		metric.WithDescription("Retried network calls"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	pending, err := meter.Int64Gauge(
		"fieldsync_pending_changes",
		metric.WithDescription("Local changes waiting to be pushed"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration: cycleDuration,
		items:         items,
		retries:       retries,
		pending:       pending,
	}, nil
}

// RecordCycle records the duration of one sync cycle
func (m *SyncMetrics) RecordCycle(ctx context.Context, tenantID, trigger string, duration time.Duration, success bool) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tenant", tenantID),
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	))
}

// RecordItems adds count items with the given direction and outcome. Zero counts are skipped.
func (m *SyncMetrics) RecordItems(ctx context.Context, tenantID, direction, outcome string, count int) {
	if m == nil || m.items == nil || count <= 0 {
		return
	}
	m.items.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("tenant", tenantID),
		attribute.String("direction", direction),
		attribute.String("outcome", outcome),
	))
}

// RecordRetry counts one retried attempt of an operation
func (m *SyncMetrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordPending records the queue depth after a cycle
func (m *SyncMetrics) RecordPending(ctx context.Context, tenantID string, count int) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Record(ctx, int64(count), metric.WithAttributes(attribute.String("tenant", tenantID)))
}
