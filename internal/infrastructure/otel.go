package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"finsheet/internal/config"
)

const tracerName = "finsheet"

// OTelProvider bundles the tracer provider and its shutdown hook.
type OTelProvider struct {
	tp     *sdktrace.TracerProvider
	logger *slog.Logger
}

// InitOTel configures the global OpenTelemetry tracer provider with a
// stdout trace exporter. Sampling is parent-based so callers can opt out.
func InitOTel(logger *slog.Logger) (*OTelProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.AppName),
			semconv.ServiceVersion(config.AppVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return &OTelProvider{tp: tp, logger: logger}, nil
}

// Shutdown flushes pending spans and releases exporter resources.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		p.logger.Warn("tracer provider shutdown failed", "error", err.Error())
		return err
	}
	return nil
}

// Tracer returns the application tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartPhaseSpan opens a span for one pipeline phase of an import
// operation. Callers must End the returned span.
func StartPhaseSpan(ctx context.Context, operationID, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "pipeline."+phase,
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("pipeline.phase", phase),
		),
	)
}
