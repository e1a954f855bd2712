// =============================================================================
// Agents SDK 遥测
// =============================================================================
// Sets up OTLP export of send spans and stream instruments for the agent host.
// Disabled telemetry leaves the global providers as noop and attaches no
// stream observer.
// =============================================================================

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/config"
)

// instrumentationName is the scope of every span and instrument the streaming
// engine produces.
const instrumentationName = "github.com/microsoft/Agents-for-net-sub004/agent/streaming"

// Providers owns the SDK providers and the stream instruments built on them.
// The zero value is valid and means telemetry is off.
type Providers struct {
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	streams *StreamMetrics
}

// Init connects the OTLP exporters and registers the stream instruments.
func Init(cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("telemetry disabled, streams are not instrumented")
		return &Providers{}, nil
	}

	ctx := context.Background()
	version := moduleVersion()
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(version),
		attribute.String("agentsdk.component", "streaming"),
	))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	// Inbound turns carry the channel's trace context; honour its decision.
	p := &Providers{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate)))),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
			sdkmetric.WithResource(res)),
	}

	p.streams, err = NewStreamMetrics(p.mp.Meter(instrumentationName, metric.WithInstrumentationVersion(version)))
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("create stream instruments: %w", err)
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("telemetry initialized",
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("service_name", cfg.ServiceName),
		zap.String("scope", instrumentationName),
		zap.Float64("sample_rate", cfg.SampleRate))
	return p, nil
}

// Tracer returns the tracer for per-send spans. Without Init it resolves
// through the global provider and is a noop.
func (p *Providers) Tracer() trace.Tracer {
	if p != nil && p.tp != nil {
		return p.tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(moduleVersion()))
	}
	return otel.Tracer(instrumentationName)
}

// StreamObserver returns the OTel stream instruments, or nil when telemetry
// is off.
func (p *Providers) StreamObserver() streaming.Observer {
	if p == nil || p.streams == nil {
		return nil
	}
	return p.streams
}

// Shutdown flushes the last stream spans and instruments. Safe on the zero
// value and on nil.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// moduleVersion is the main module version, "dev" for local builds.
func moduleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
