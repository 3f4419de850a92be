package telemetry

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attributes describing what an agent syncs
const (
	AttrTenantIDs   = attribute.Key("fieldsync.tenant.ids")
	AttrTenantCount = attribute.Key("fieldsync.tenant.count")
)

// Identity names the agent on every exported span and metric
type Identity struct {
	// Agent is the configured agent name, exported as service.instance.id
	Agent string
	// Version is the build version, used unless the config sets one
	Version string
	// Tenants are the tenant ids this agent syncs
	Tenants []string
}

// attributes merges the identity with the service overrides from cfg
func (id Identity) attributes(cfg *Config) []attribute.KeyValue {
	name := DefaultServiceName
	version := id.Version
	if cfg != nil {
		if cfg.ServiceName != "" {
			name = cfg.ServiceName
		}
		if cfg.ServiceVersion != "" {
			version = cfg.ServiceVersion
		}
	}
	if version == "" {
		version = unknownVersion
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	}
	if id.Agent != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(id.Agent))
	}
	if len(id.Tenants) > 0 {
		tenants := slices.Clone(id.Tenants)
		slices.Sort(tenants)
		attrs = append(attrs,
			AttrTenantIDs.StringSlice(tenants),
			AttrTenantCount.Int(len(tenants)),
		)
	}
	return attrs
}

// resource.New is used instead of resource.Default to avoid schema URL conflicts
func (id Identity) resource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(id.attributes(cfg)...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
