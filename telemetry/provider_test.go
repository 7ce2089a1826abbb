package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/itsneelabh/kindreg/core"
)

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), core.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Meter())
	assert.NotNil(t, p.TracerProvider())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := p.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestSetupWithInMemoryExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	p, err := Setup(context.Background(),
		core.TelemetryConfig{Enabled: true, Exporter: "otlp", Endpoint: "unused:4317", ServiceName: "kindreg-test", SamplingRate: 1},
		nil,
		WithSpanExporter(exporter),
		WithMetricReader(reader),
		WithoutGlobal(),
	)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "registry.Populate")
	span.End()

	counter, err := p.Meter().Int64Counter("kindreg.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "registry.Populate", spans[0].Name)
	assert.Equal(t, InstrumentationName, spans[0].InstrumentationScope.Name)

	var serviceName string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "kindreg-test", serviceName)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
	assert.Equal(t, "kindreg.test.counter", rm.ScopeMetrics[0].Metrics[0].Name)
}

func TestSetupStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(),
		core.TelemetryConfig{Enabled: true, Exporter: "stdout", ServiceName: "kindreg-test"},
		nil,
		WithWriter(&buf),
		WithoutGlobal(),
	)
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "stdout-span")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "stdout-span")
}

func TestSetupUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(),
		core.TelemetryConfig{Enabled: true, Exporter: "zipkin"},
		nil,
		WithoutGlobal(),
	)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))
}

func TestTracingMiddleware(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	exporter := tracetest.NewInMemoryExporter()
	p, err := Setup(context.Background(),
		core.TelemetryConfig{Enabled: true, Exporter: "stdout", ServiceName: "kindreg-test"},
		nil,
		WithSpanExporter(exporter),
	)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	handler := TracingMiddleware("kindreg-test", "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/registry", "/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "excluded paths must not be traced")
	assert.Equal(t, "HTTP GET /api/registry", spans[0].Name)
}
