// Package telemetry wires OpenTelemetry metrics and tracing for the sync agent.
// Both signals are exported over OTLP/HTTP and fall back to no-op providers
// when disabled. Every exported signal carries the identity of the agent and
// the tenants it syncs.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName is reported when no service name is configured
	DefaultServiceName = "fieldsync"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the ratio of sync cycles traced when none is configured
	DefaultSampling = 0.05

	unknownVersion = "unknown"
)

// Config represents the telemetry section of the agent configuration
type Config struct {
	// Enabled turns telemetry on. When false no exporter is created.
	Enabled bool `yaml:"enabled"`

	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is "host:port"; the exporters append /v1/traces and /v1/metrics
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends telemetry over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig defines tracing-specific configuration
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of sync cycles traced, between 0.0 and 1.0
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig defines metrics-specific configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// collector returns the OTLP endpoint the exporters dial
func (c *Config) collector() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// tracing reports whether spans are exported, and at which ratio
func (c *Config) tracing() (bool, float64) {
	if c.Tracing == nil || !c.Tracing.Enabled {
		return false, 0
	}
	if c.Tracing.Sampling == 0 {
		return true, DefaultSampling
	}
	return true, c.Tracing.Sampling
}

// metrics reports whether metrics are exported
func (c *Config) metrics() bool {
	return c.Metrics != nil && c.Metrics.Enabled
}

// Validate validates the telemetry configuration. A nil or disabled config is valid.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if c.Tracing != nil && c.Tracing.Enabled {
		if s := c.Tracing.Sampling; s < 0 || s > 1.0 {
			errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", s))
		}
	}
	return errors.Join(errs...)
}
