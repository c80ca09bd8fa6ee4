package observability

import (
	"context"

	"learnanalytics/internal/config"
	contextutils "learnanalytics/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitMetrics initializes OpenTelemetry metrics
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "unsupported otel protocol: %s", cfg.Protocol)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	)
	return mp, nil
}

// EngineMetrics holds the counters recorded by the analytics engine.
// The zero value is not usable; build it with NewEngineMetrics.
type EngineMetrics struct {
	recommendations otelmetric.Int64Counter
	mistakes        otelmetric.Int64Counter
	textgenCalls    otelmetric.Int64Counter
}

// NewEngineMetrics registers the engine counters on the global meter provider.
// With no provider installed the counters are no-ops.
func NewEngineMetrics() *EngineMetrics {
	meter := otel.Meter("learnanalytics")
	m := &EngineMetrics{}
	// Instrument creation only fails on invalid names, which are constants here
	m.recommendations, _ = meter.Int64Counter("learnanalytics.recommendations.generated",
		otelmetric.WithDescription("Recommendations returned to learners"))
	m.mistakes, _ = meter.Int64Counter("learnanalytics.mistakes.analyzed",
		otelmetric.WithDescription("Mistake analyses created"))
	m.textgenCalls, _ = meter.Int64Counter("learnanalytics.textgen.calls",
		otelmetric.WithDescription("Calls made to the explanation generator"))
	return m
}

// RecordRecommendations adds n generated recommendations.
func (m *EngineMetrics) RecordRecommendations(ctx context.Context, n int) {
	if m == nil || m.recommendations == nil {
		return
	}
	m.recommendations.Add(ctx, int64(n))
}

// RecordMistake counts one created analysis tagged with its error type.
func (m *EngineMetrics) RecordMistake(ctx context.Context, errorType string) {
	if m == nil || m.mistakes == nil {
		return
	}
	m.mistakes.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("error_type", errorType)))
}

// RecordTextGen counts one generator call with outcome "ok", "empty" or "error".
func (m *EngineMetrics) RecordTextGen(ctx context.Context, outcome string) {
	if m == nil || m.textgenCalls == nil {
		return
	}
	m.textgenCalls.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}
