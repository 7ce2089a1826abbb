// Package telemetry sets up OpenTelemetry tracing and metrics for a
// kindreg process.
//
// Setup installs the tracer and meter providers globally so that
// instrumented libraries (otelhttp) and the registry's population span
// share one pipeline. When telemetry is disabled every accessor returns a
// no-op implementation and Shutdown is a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/itsneelabh/kindreg/core"
)

// InstrumentationName is the scope name used for kindreg's own spans and
// instruments.
const InstrumentationName = "github.com/itsneelabh/kindreg"

// Provider owns the tracer and meter providers for the process.
type Provider struct {
	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	logger  core.Logger
	enabled bool
}

type setupOptions struct {
	spanExporter sdktrace.SpanExporter
	metricReader sdkmetric.Reader
	writer       io.Writer
	version      string
	global       bool
}

// Option customizes Setup.
type Option func(*setupOptions)

// WithSpanExporter overrides the exporter chosen from the config. Tests use
// it with tracetest.NewInMemoryExporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *setupOptions) { o.spanExporter = exp }
}

// WithMetricReader overrides the metric reader chosen from the config.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *setupOptions) { o.metricReader = r }
}

// WithWriter sets where the stdout exporter writes. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *setupOptions) { o.writer = w }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) Option {
	return func(o *setupOptions) { o.version = v }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *setupOptions) { o.global = false }
}

// Setup builds the providers described by cfg. A disabled config yields a
// no-op Provider.
func Setup(ctx context.Context, cfg core.TelemetryConfig, logger core.Logger, opts ...Option) (*Provider, error) {
	logger = core.ComponentLogger(logger, "kindreg/telemetry")

	o := &setupOptions{writer: os.Stdout, version: "dev", global: true}
	for _, opt := range opts {
		opt(o)
	}

	if !cfg.Enabled {
		logger.Debug("Telemetry disabled", nil)
		return &Provider{logger: logger}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(o.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := o.spanExporter
	if exporter == nil {
		exporter, err = newSpanExporter(ctx, cfg, o.writer)
		if err != nil {
			return nil, &core.FrameworkError{Op: "telemetry.Setup", Kind: "telemetry", ID: cfg.Exporter, Err: err}
		}
	}

	rate := cfg.SamplingRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)

	reader := o.metricReader
	if reader == nil && cfg.Exporter == "otlphttp" {
		metricExporter, err := otlpmetrichttp.New(ctx, metricHTTPOptions(cfg)...)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, &core.FrameworkError{Op: "telemetry.Setup", Kind: "telemetry", ID: cfg.Exporter, Err: err}
		}
		reader = sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	logger.Info("Telemetry enabled", map[string]interface{}{
		"exporter":      cfg.Exporter,
		"endpoint":      cfg.Endpoint,
		"service_name":  cfg.ServiceName,
		"sampling_rate": rate,
	})

	return &Provider{tp: tp, mp: mp, logger: logger, enabled: true}, nil
}

func newSpanExporter(ctx context.Context, cfg core.TelemetryConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "otlphttp":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter %q: %w", cfg.Exporter, core.ErrInvalidConfiguration)
	}
}

func metricHTTPOptions(cfg core.TelemetryConfig) []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}

// Enabled reports whether Setup installed real providers.
func (p *Provider) Enabled() bool {
	return p != nil && p.enabled
}

// Tracer returns a tracer for kindreg's own spans.
func (p *Provider) Tracer() trace.Tracer {
	if !p.Enabled() {
		return tracenoop.NewTracerProvider().Tracer(InstrumentationName)
	}
	return p.tp.Tracer(InstrumentationName)
}

// Meter returns a meter for kindreg's own instruments.
func (p *Provider) Meter() metric.Meter {
	if !p.Enabled() {
		return metricnoop.NewMeterProvider().Meter(InstrumentationName)
	}
	return p.mp.Meter(InstrumentationName)
}

// TracerProvider returns the underlying provider, or a no-op one.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if !p.Enabled() {
		return tracenoop.NewTracerProvider()
	}
	return p.tp
}

// ForceFlush exports any buffered spans and metrics.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	err := errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
	if err != nil {
		p.logger.Error("Telemetry shutdown failed", map[string]interface{}{
			"error": err,
		})
	}
	return err
}
