// Package tracing wires OpenTelemetry tracing for the registration workflow.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrEventID        = "event.id"
	AttrRegistrationID = "registration.id"
	AttrStatusFrom     = "registration.status.from"
	AttrStatusTo       = "registration.status.to"
	AttrLedgerEffect   = "ledger.effect"
)

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether tracing is active.
	// When false, a no-op tracer is returned.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the export backend: "none", "stdout" or "otlp".
	Exporter string `mapstructure:"exporter"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate is the fraction of root traces sampled.
	SampleRate float64 `mapstructure:"sample_rate"`

	ServiceName string `mapstructure:"service_name"`
}

// DefaultConfig returns tracing disabled with local collector defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Exporter:     "stdout",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
		ServiceName:  "event-seat-ledger",
	}
}

// Provider wraps the tracer provider so callers can shut it down cleanly.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

// NewProvider creates and configures the trace provider.
// A disabled config yields a no-op tracer.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer("noop")}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
	case "otlp":
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		exporter, err = otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	case "none", "":
		exporter = nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultConfig().ServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &Provider{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		enabled:  true,
	}, nil
}

// Tracer returns the configured tracer. It is safe to use when disabled.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled returns whether tracing is enabled.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}
