package otel

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// serviceNamespace groups every practiq process under one namespace in the
// telemetry backend.
const serviceNamespace = "practiq"

// overageBuckets are hour-scale boundaries for overage: from a half hour up
// to two full allocations of a typical 40 hour bank.
var overageBuckets = []float64{0.5, 1, 2, 4, 8, 16, 24, 40, 80}

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // "development", "staging" or "production"
	Exporter       string // "stdout", "otlp" or "none"
	Insecure       bool   // plain HTTP for OTLP
}

// ConfigFromEnv reads Config from OTEL_* variables. OTLP runs over plain
// HTTP only in development.
func ConfigFromEnv() Config {
	env := envOrDefault("OTEL_ENVIRONMENT", "development")
	return Config{
		ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "practiq"),
		ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "0.1.0"),
		Environment:    env,
		Exporter:       envOrDefault("OTEL_EXPORTER", "stdout"),
		Insecure:       env == "development",
	}
}

// Providers holds the installed providers' shutdown hook.
type Providers struct {
	Shutdown func(ctx context.Context) error
}

// Setup builds the tracer and meter providers for cfg, installs them as the
// global providers and returns their shutdown hook, which flushes pending
// telemetry and must run on exit.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	res, err := NewResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	traceOpts := []trace.TracerProviderOption{trace.WithResource(res)}
	if exp.spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(exp.spans))
	}
	tp := trace.NewTracerProvider(traceOpts...)

	meterOpts := []metric.Option{metric.WithResource(res), metric.WithView(Views()...)}
	if exp.metrics != nil {
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(exp.metrics)))
	}
	mp := metric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Providers{Shutdown: func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}}, nil
}

// NewResource describes this deployment: service identity and environment,
// the host and Go runtime it runs on, and anything set in
// OTEL_RESOURCE_ATTRIBUTES.
func NewResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceNamespace(serviceNamespace),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}
	return res, nil
}

// Views reshapes instruments whose default aggregation does not fit their
// unit. The default histogram buckets are sized for milliseconds.
func Views() []metric.View {
	return []metric.View{
		metric.NewView(
			metric.Instrument{Name: overageHistogram},
			metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: overageBuckets}},
		),
	}
}

// exporters pairs the span and metric exporters of one backend. Both are nil
// for "none", which keeps instrumentation live without shipping anything.
type exporters struct {
	spans   trace.SpanExporter
	metrics metric.Exporter
}

func newExporters(ctx context.Context, cfg Config) (exporters, error) {
	var (
		exp exporters
		err error
	)
	switch cfg.Exporter {
	case "none":
		return exp, nil
	case "otlp":
		var traceOpts []otlptracehttp.Option
		var metricOpts []otlpmetrichttp.Option
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		if exp.spans, err = otlptracehttp.New(ctx, traceOpts...); err != nil {
			return exp, fmt.Errorf("creating otlp span exporter: %w", err)
		}
		if exp.metrics, err = otlpmetrichttp.New(ctx, metricOpts...); err != nil {
			return exp, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
	case "stdout":
		if exp.spans, err = stdouttrace.New(stdouttrace.WithPrettyPrint()); err != nil {
			return exp, fmt.Errorf("creating stdout span exporter: %w", err)
		}
		if exp.metrics, err = stdoutmetric.New(); err != nil {
			return exp, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
	default:
		return exp, fmt.Errorf("unsupported exporter: %q (use \"stdout\", \"otlp\" or \"none\")", cfg.Exporter)
	}
	return exp, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
