package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry owns the MeterProvider and its Prometheus bridge. A nil
// *Telemetry, and a disabled one, both behave as a no-op: every Meter
// call falls back to the OTel no-op implementation.
type Telemetry struct {
	config        *Config
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry

	healthy  atomic.Bool
	degraded atomic.Bool
}

// New builds a Telemetry instance. If cfg.Enabled is false, returns a
// disabled instance whose Meter/Gatherer calls degrade to no-ops rather
// than erroring -- a library embedding ckg should not need to run with
// telemetry on just to construct the facade.
func New(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	t.healthy.Store(true)

	if !cfg.Enabled {
		return t, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		t.setDegraded("resource creation failed: %v", err)
		return t, nil
	}

	reg := prometheus.NewRegistry()
	promExp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		t.setDegraded("prometheus exporter failed: %v", err)
		return t, nil
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	t.meterProvider = mp
	t.registry = reg
	otel.SetMeterProvider(mp)

	return t, nil
}

// Meter returns a meter scoped to name, falling back to the global
// no-op provider when telemetry is nil, disabled, or degraded.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// Gatherer returns the Prometheus registry backing this instance's
// metrics, for the host process to mount under its own /metrics
// endpoint. Returns an empty registry when telemetry is nil or
// disabled, never nil.
func (t *Telemetry) Gatherer() prometheus.Gatherer {
	if t == nil || t.registry == nil {
		return prometheus.NewRegistry()
	}
	return t.registry
}

// Shutdown flushes and releases the meter provider. Safe to call on a
// nil or disabled instance.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}
	t.healthy.Store(false)
	return t.meterProvider.Shutdown(ctx)
}

// IsEnabled reports whether this instance is actively exporting.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled && t.healthy.Load() && !t.degraded.Load()
}

func (t *Telemetry) setDegraded(format string, args ...any) {
	t.degraded.Store(true)
	_ = fmt.Errorf(format, args...)
}
