package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func tracingEnabledConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "test-service",
		ServiceVersion: "v1.0.0",
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Default configuration ships metrics only
	providers, err := InitializeOTel(nil, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))

	// Tracing on demand
	providers, err = InitializeOTel(tracingEnabledConfig(), logger)
	require.NoError(t, err)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(tracingEnabledConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)

	expectedTraceID := span.SpanContext().TraceID().String()
	assert.Equal(t, expectedTraceID, traceID)

	ctx = WithTraceID(ctx, traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))
}

// TestBusinessMetrics tests pipeline metrics creation
func TestBusinessMetrics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	// Run metrics
	assert.NotNil(t, metrics.PipelineRunsTotal)
	assert.NotNil(t, metrics.PipelineRunDuration)
	assert.NotNil(t, metrics.ActiveRuns)

	// Stage metrics
	assert.NotNil(t, metrics.StageExecutionsTotal)
	assert.NotNil(t, metrics.StageDuration)
	assert.NotNil(t, metrics.StageErrors)

	// Row flow metrics
	assert.NotNil(t, metrics.RowsRead)
	assert.NotNil(t, metrics.RowsCleaned)
	assert.NotNil(t, metrics.RowsQuarantined)
	assert.NotNil(t, metrics.DuplicatesDropped)

	// Warehouse metrics
	assert.NotNil(t, metrics.FactsWritten)
	assert.NotNil(t, metrics.DimensionRowsMinted)
	assert.NotNil(t, metrics.SCDVersionsOpened)
	assert.NotNil(t, metrics.SCDVersionsClosed)

	// Quality and anomaly metrics
	assert.NotNil(t, metrics.RuleEvaluationsTotal)
	assert.NotNil(t, metrics.AnomaliesFlagged)
	assert.NotNil(t, metrics.SystemErrors)
}

// TestSpanOperations tests span operations and attributes
func TestSpanOperations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(tracingEnabledConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()
	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-span")
	defer span.End()

	SetSpanAttributes(ctx, map[string]interface{}{
		"string_attr": "test_value",
		"int_attr":    42,
		"float_attr":  3.14,
		"bool_attr":   true,
	})

	AddSpanEvent(ctx, "test.event", map[string]interface{}{
		"event_data": "test_event_value",
		"timestamp":  time.Now().Unix(),
	})

	RecordError(ctx, assert.AnError)

	assert.True(t, span.IsRecording())
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

// TestOTelConfiguration tests different configuration options
func TestOTelConfiguration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name   string
		config *OTelConfig
	}{
		{
			name:   "tracing_and_metrics",
			config: tracingEnabledConfig(),
		},
		{
			name: "disabled_tracing",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "none",
				MetricExporter: "prometheus",
				EnableMetrics:  true,
				EnableTracing:  false,
				SampleRatio:    0.0,
			},
		},
		{
			name: "disabled_metrics",
			config: &OTelConfig{
				ServiceName:    "test-service",
				ServiceVersion: "v1.0.0",
				Environment:    "test",
				TraceExporter:  "stdout",
				MetricExporter: "none",
				EnableMetrics:  false,
				EnableTracing:  true,
				SampleRatio:    1.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, logger)
			require.NoError(t, err)
			require.NotNil(t, providers)

			if tt.config.EnableTracing {
				assert.NotNil(t, providers.TracerProvider)
				assert.NotNil(t, providers.Tracer)
			}

			if tt.config.EnableMetrics {
				assert.NotNil(t, providers.MeterProvider)
				assert.NotNil(t, providers.Meter)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, providers.Shutdown(ctx))
		})
	}
}

// TestRecordHelpers verifies the metric helpers tolerate nil metrics
// and record without panicking when metrics are wired.
func TestRecordHelpers(t *testing.T) {
	ctx := context.Background()

	RecordRunMetrics(ctx, nil, "run-1", time.Second, true, nil)
	RecordStageMetrics(ctx, nil, "run-1", "silver_clean", time.Second, true)
	RecordActiveRunChange(ctx, nil, 1)
	RecordQuarantine(ctx, nil, "RangeViolation", 3)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(DefaultOTelConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	RecordRunMetrics(ctx, metrics, "run-1", 2*time.Second, false, assert.AnError)
	RecordStageMetrics(ctx, metrics, "run-1", "bronze_ingest", 500*time.Millisecond, false)
	RecordActiveRunChange(ctx, metrics, 1)
	RecordActiveRunChange(ctx, metrics, -1)
	RecordQuarantine(ctx, metrics, "RangeViolation", 3)
	RecordQuarantine(ctx, metrics, "RangeViolation", 0)
}

// TestTracePropagation tests trace propagation across contexts
func TestTracePropagation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	providers, err := InitializeOTel(tracingEnabledConfig(), logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	tracer := otel.Tracer("propagation-test")

	ctx := context.Background()
	ctx, parentSpan := tracer.Start(ctx, "parent-operation")
	defer parentSpan.End()

	_, childSpan := tracer.Start(ctx, "child-operation")
	defer childSpan.End()

	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID())
	assert.NotEqual(t, parentSpan.SpanContext().SpanID(), childSpan.SpanContext().SpanID())
}
