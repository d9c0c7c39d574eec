package metrics

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// Telemetry owns the exporters selected by the observability configuration.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// Prometheus is set when metrics are enabled with the prometheus exporter.
	Prometheus *PrometheusRecorder

	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	shutdowns []func(context.Context) error
}

// NewTelemetry builds providers and exporters for cfg. Exporters connect lazily,
// so an unreachable collector does not fail startup.
func NewTelemetry(ctx context.Context, cfg config.ObservabilityConfig) (*Telemetry, error) {
	t := &Telemetry{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName(cfg)))

	if err := t.setupTracing(ctx, cfg.Tracing, res); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled {
		if err := t.setupMetrics(ctx, cfg, res); err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
	}
	return t, nil
}

func serviceName(cfg config.ObservabilityConfig) string {
	if cfg.ServiceName == "" {
		return "bulkop"
	}
	return cfg.ServiceName
}

func (t *Telemetry) setupTracing(ctx context.Context, cfg config.TracingConfig, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "", config.ExporterNone:
		return nil
	case config.ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case config.ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return fmt.Errorf("unsupported tracing exporter '%s'", cfg.Exporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s trace exporter: %w", cfg.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	t.TracerProvider = tp
	t.tracer = NewOpenTelemetryTracer(tp)
	t.shutdowns = append(t.shutdowns, tp.Shutdown)
	logger.Infof("Tracing enabled: exporter=%s endpoint=%s", cfg.Exporter, cfg.Endpoint)
	return nil
}

func (t *Telemetry) setupMetrics(ctx context.Context, cfg config.ObservabilityConfig, res *resource.Resource) error {
	var exporter sdkmetric.Exporter
	var err error
	switch cfg.MetricsExporter {
	case "", config.ExporterPrometheus:
		t.Prometheus = NewPrometheusRecorder()
		t.recorder = t.Prometheus
		logger.Infof("Prometheus metrics enabled on %s", cfg.MetricsAddress)
		return nil
	case config.ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.MetricsEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.MetricsEndpoint))
		}
		if cfg.Tracing.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	case config.ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.MetricsEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.MetricsEndpoint))
		}
		if cfg.Tracing.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default:
		return fmt.Errorf("unsupported metrics exporter '%s'", cfg.MetricsExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s metric exporter: %w", cfg.MetricsExporter, err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	t.shutdowns = append(t.shutdowns, mp.Shutdown)
	return t.useMeterProvider(mp)
}

func (t *Telemetry) useMeterProvider(mp metric.MeterProvider) error {
	recorder, err := NewOTelRecorder(mp)
	if err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}
	t.MeterProvider = mp
	t.recorder = recorder
	logger.Infof("OpenTelemetry metrics enabled")
	return nil
}

// Recorder returns the configured recorder, or nil when metrics are disabled.
func (t *Telemetry) Recorder() metrics.MetricRecorder {
	return t.recorder
}

// Tracer returns the configured tracer, or nil when tracing is disabled.
func (t *Telemetry) Tracer() metrics.Tracer {
	return t.tracer
}

// Shutdown flushes and stops every exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	t.shutdowns = nil
	return result.ErrorOrNil()
}
