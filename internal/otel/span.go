// Package otel holds the span helpers and attribute keys shared by the sync engines.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on sync spans
const (
	AttrTenant        = attribute.Key("sync.tenant")
	AttrEntity        = attribute.Key("sync.entity")
	AttrTrigger       = attribute.Key("sync.trigger")
	AttrPendingCount  = attribute.Key("sync.pending.count")
	AttrSyncedCount   = attribute.Key("sync.synced.count")
	AttrConflictCount = attribute.Key("sync.conflict.count")
	AttrRejectedCount = attribute.Key("sync.rejected.count")
	AttrRowCount      = attribute.Key("sync.row.count")
	AttrHasCursor     = attribute.Key("sync.has_cursor")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when tracer is nil
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status description
// stays generic; the error text is only in the exception event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
