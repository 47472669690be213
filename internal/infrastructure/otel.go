package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "retail-medallion-pipeline"
	ServiceVersion = "v1.0.0"
	MeterName      = "retailcli"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  false,
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes OpenTelemetry tracing and metrics
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "initializing opentelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		// Scrape handler for the embedding service to mount; nothing in
		// this module serves HTTP itself.
		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	pipelineRunsTotal, err := meter.Int64Counter(
		"pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	pipelineRunDuration, err := meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Pipeline run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeRuns, err := meter.Int64UpDownCounter(
		"pipeline_active_runs",
		metric.WithDescription("Number of active pipeline runs"),
	)
	if err != nil {
		return nil, err
	}

	stageExecutionsTotal, err := meter.Int64Counter(
		"pipeline_stage_executions_total",
		metric.WithDescription("Total number of stage executions"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter(
		"pipeline_stage_errors_total",
		metric.WithDescription("Total number of stage errors"),
	)
	if err != nil {
		return nil, err
	}

	rowsRead, err := meter.Int64Counter(
		"pipeline_rows_read_total",
		metric.WithDescription("Raw rows read from bronze sources"),
	)
	if err != nil {
		return nil, err
	}

	rowsCleaned, err := meter.Int64Counter(
		"pipeline_rows_cleaned_total",
		metric.WithDescription("Rows accepted into the silver layer"),
	)
	if err != nil {
		return nil, err
	}

	rowsQuarantined, err := meter.Int64Counter(
		"pipeline_rows_quarantined_total",
		metric.WithDescription("Rows quarantined, labeled by reason"),
	)
	if err != nil {
		return nil, err
	}

	duplicatesDropped, err := meter.Int64Counter(
		"pipeline_duplicates_dropped_total",
		metric.WithDescription("Exact-duplicate rows dropped during cleaning"),
	)
	if err != nil {
		return nil, err
	}

	factsWritten, err := meter.Int64Counter(
		"pipeline_facts_written_total",
		metric.WithDescription("Fact rows written to gold, labeled by table"),
	)
	if err != nil {
		return nil, err
	}

	dimensionRowsMinted, err := meter.Int64Counter(
		"pipeline_dimension_rows_minted_total",
		metric.WithDescription("New dimension rows minted, labeled by dimension"),
	)
	if err != nil {
		return nil, err
	}

	scdVersionsOpened, err := meter.Int64Counter(
		"pipeline_scd_versions_opened_total",
		metric.WithDescription("Customer dimension versions opened"),
	)
	if err != nil {
		return nil, err
	}

	scdVersionsClosed, err := meter.Int64Counter(
		"pipeline_scd_versions_closed_total",
		metric.WithDescription("Customer dimension versions closed"),
	)
	if err != nil {
		return nil, err
	}

	ruleEvaluationsTotal, err := meter.Int64Counter(
		"quality_rule_evaluations_total",
		metric.WithDescription("Quality rule evaluations, labeled by layer and outcome"),
	)
	if err != nil {
		return nil, err
	}

	anomaliesFlagged, err := meter.Int64Counter(
		"anomalies_flagged_total",
		metric.WithDescription("Anomaly records emitted, labeled by type and severity"),
	)
	if err != nil {
		return nil, err
	}

	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		PipelineRunsTotal:   pipelineRunsTotal,
		PipelineRunDuration: pipelineRunDuration,
		ActiveRuns:          activeRuns,

		StageExecutionsTotal: stageExecutionsTotal,
		StageDuration:        stageDuration,
		StageErrors:          stageErrors,

		RowsRead:          rowsRead,
		RowsCleaned:       rowsCleaned,
		RowsQuarantined:   rowsQuarantined,
		DuplicatesDropped: duplicatesDropped,

		FactsWritten:        factsWritten,
		DimensionRowsMinted: dimensionRowsMinted,
		SCDVersionsOpened:   scdVersionsOpened,
		SCDVersionsClosed:   scdVersionsClosed,

		RuleEvaluationsTotal: ruleEvaluationsTotal,
		AnomaliesFlagged:     anomaliesFlagged,

		SystemErrors: systemErrors,
	}, nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	PipelineRunsTotal   metric.Int64Counter
	PipelineRunDuration metric.Float64Histogram
	ActiveRuns          metric.Int64UpDownCounter

	StageExecutionsTotal metric.Int64Counter
	StageDuration        metric.Float64Histogram
	StageErrors          metric.Int64Counter

	RowsRead          metric.Int64Counter
	RowsCleaned       metric.Int64Counter
	RowsQuarantined   metric.Int64Counter
	DuplicatesDropped metric.Int64Counter

	FactsWritten        metric.Int64Counter
	DimensionRowsMinted metric.Int64Counter
	SCDVersionsOpened   metric.Int64Counter
	SCDVersionsClosed   metric.Int64Counter

	RuleEvaluationsTotal metric.Int64Counter
	AnomaliesFlagged     metric.Int64Counter

	SystemErrors metric.Int64Counter
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "opentelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, anyAttribute(k, v))
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		span.SetAttributes(anyAttribute(k, v))
	}
}

func anyAttribute(k string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	default:
		return attribute.String(k, fmt.Sprintf("%v", val))
	}
}

// RecordRunMetrics records metrics for a completed pipeline run
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, runID string, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
	}

	metrics.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	metrics.PipelineRunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, statusAttr)...))

	if err != nil {
		metrics.SystemErrors.Add(ctx, 1,
			metric.WithAttributes(append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))...))
	}
}

// RecordStageMetrics records metrics for one stage execution
func RecordStageMetrics(ctx context.Context, metrics *BusinessMetrics, runID, stageID string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("stage.id", stageID),
	}

	metrics.StageExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
		metrics.StageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	metrics.StageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(append(attrs, statusAttr)...))
}

// RecordActiveRunChange records changes in the active run count
func RecordActiveRunChange(ctx context.Context, metrics *BusinessMetrics, delta int64) {
	if metrics == nil {
		return
	}
	metrics.ActiveRuns.Add(ctx, delta)
}

// RecordQuarantine counts quarantined rows per reason
func RecordQuarantine(ctx context.Context, metrics *BusinessMetrics, reason string, count int64) {
	if metrics == nil || count == 0 {
		return
	}
	metrics.RowsQuarantined.Add(ctx, count,
		metric.WithAttributes(attribute.String("reason", reason)))
}
