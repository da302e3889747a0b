// Package telemetry provides OpenTelemetry metrics instrumentation for ckg.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// via a pull-based Prometheus bridge ([Telemetry.Gatherer]) rather than a
// push exporter: ckg is an embeddable library with no server of its own
// (spec.md §1's transport non-goals), so the host process decides whether
// and how to expose the gatherer -- mounting it under its own HTTP server,
// wiring it into its own registry, or ignoring it entirely. When disabled,
// every instrument degrades to the OTel no-op implementation and every
// Record* call is a no-op.
package telemetry

import "fmt"

// Config holds telemetry configuration (spec.md's ambient stack).
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
}

// NewDefaultConfig returns telemetry defaults. Disabled by default: an
// embedded library should not start exporting metrics until its host
// opts in.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		ServiceName:    "ckg",
		ServiceVersion: "0.1.0",
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}
	return nil
}
