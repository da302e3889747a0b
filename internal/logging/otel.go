// internal/logging/otel.go
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap/zapcore"
)

// newDualCore builds the zapcore.Core for the configured outputs. This
// engine's telemetry stack is metrics-only (internal/telemetry, OTel
// metrics + Prometheus exporter) -- there is no OTel log exporter here, so
// Output.OTEL does not open a second sink. It instead tags every log line
// with otelResource (typically service.name / deployment attributes) so
// stdout logs can be correlated with exported metrics and traces.
func newDualCore(cfg *Config, otelResource map[string]string) (zapcore.Core, error) {
	if !cfg.Output.Stdout && !cfg.Output.OTEL {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	baseEncoder := newEncoder(cfg.Format)
	encoder, err := NewRedactingEncoder(baseEncoder, cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}
	writer := zapcore.AddSync(os.Stdout)
	core := zapcore.NewCore(encoder, writer, cfg.Level)

	if cfg.Output.OTEL && len(otelResource) > 0 {
		fields := make([]zapcore.Field, 0, len(otelResource))
		for k, v := range otelResource {
			fields = append(fields, zapcore.Field{Key: k, Type: zapcore.StringType, String: v})
		}
		core = core.With(fields)
	}

	return newSampledCore(core, cfg.Sampling), nil
}
