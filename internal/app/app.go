package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"retailcli/internal/config"
	"retailcli/internal/infrastructure"
	"retailcli/internal/lake"
	"retailcli/internal/operations"
	"retailcli/internal/quality"
	"retailcli/internal/scheduler"
)

const (
	shutdownTimeout = 10 * time.Second

	// How often the daemon samples Go runtime health while scheduling.
	runtimeMetricsInterval = 30 * time.Second
)

// Application bundles the configured pipeline: the lake store, the quality
// engine, and the operations manager with all stages registered.
type Application struct {
	config    *config.Config
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	store     *lake.Store
	engine    *quality.Engine
	manager   *operations.Manager
}

// NewApplication loads configuration from the environment and config file
// and assembles the pipeline.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig assembles the pipeline from an already-validated
// configuration. Commands that apply flag overrides call this directly.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	a := &Application{config: cfg}
	if err := a.initializeServices(); err != nil {
		return nil, err
	}
	return a, nil
}

// initializeServices wires all components in dependency order. Any failure
// aborts startup; a pipeline with a half-built stage set must not run.
func (a *Application) initializeServices() error {
	logger, err := infrastructure.InitializeLogger(a.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.providers = providers

	store := lake.NewStore(a.config.Lake, logger)
	if err := store.EnsureLayout(); err != nil {
		return fmt.Errorf("failed to prepare lake layout: %w", err)
	}
	a.store = store

	ruleSet, err := quality.LoadRuleSet(a.config.Quality.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load quality rules: %w", err)
	}
	engine, err := quality.NewEngine(ruleSet, a.config.Quality, logger)
	if err != nil {
		return fmt.Errorf("failed to build quality engine: %w", err)
	}
	a.engine = engine

	var tracer *operations.PipelineTracer
	var metrics *infrastructure.BusinessMetrics
	if providers.Meter != nil {
		tracer, err = operations.NewPipelineTracer(providers)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline tracing: %w", err)
		}
		metrics = tracer.Metrics()
	}

	registry := operations.NewRegistry()
	stages := []operations.Stage{
		operations.NewBronzeStage(store, a.config.Pipeline, metrics, logger),
		operations.NewSilverStage(store, a.config.Pipeline, metrics, logger),
		operations.NewDimensionStage(store, metrics, logger),
		operations.NewCustomerStage(store, metrics, logger),
		operations.NewFactStage(store, a.config.Pipeline, metrics, logger),
		operations.NewQualityStage(store, engine, metrics, logger),
		operations.NewAnomalyStage(store, a.config.Anomaly, metrics, logger),
		operations.NewAnalyticsStage(store, a.config.Analytics, metrics, logger),
	}
	for _, stage := range stages {
		if err := registry.Register(stage); err != nil {
			return fmt.Errorf("failed to register stage %s: %w", stage.ID(), err)
		}
	}

	manager := operations.NewManager(store, registry,
		operations.FromPipeline(a.config.Pipeline),
		operations.NewLogSink(logger))
	if tracer != nil {
		manager.SetTracer(tracer)
	}
	a.manager = manager

	logger.Info("application initialized",
		slog.String("version", config.AppVersion),
		slog.String("data_dir", a.config.GetDataDir()),
		slog.Int("stages", registry.Count()),
		slog.Int("quality_rules", len(ruleSet.Rules)))

	return nil
}

// Run executes the pipeline according to configuration: once by default, or
// on the configured interval when scheduling is enabled. It blocks until
// the work finishes or ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.config.Schedule.Enabled {
		return a.runScheduled(ctx)
	}
	_, err := a.RunOnce(ctx)
	return err
}

// RunOnce executes one full pipeline run for the configured run date.
func (a *Application) RunOnce(ctx context.Context) (*operations.RunResponse, error) {
	return a.manager.Execute(ctx, operations.RunRequest{
		RunDate: a.config.Pipeline.RunDate,
	})
}

// RunStage executes a single stage; the inputs its upstream stages would
// have handed over are read back from the lake instead.
func (a *Application) RunStage(ctx context.Context, stageID string) (*operations.RunResponse, error) {
	return a.manager.Execute(ctx, operations.RunRequest{
		RunDate: a.config.Pipeline.RunDate,
		Stage:   stageID,
	})
}

// runScheduled repeats full runs on the configured interval until ctx is
// cancelled. Runtime health metrics are sampled for the daemon's lifetime.
func (a *Application) runScheduled(ctx context.Context) error {
	if a.providers != nil && a.providers.Meter != nil {
		collector, err := infrastructure.NewRuntimeMetricsCollector(a.providers.Meter, runtimeMetricsInterval)
		if err != nil {
			a.logger.Warn("runtime metrics collection disabled",
				slog.String("error", err.Error()))
		} else {
			go collector.Start(ctx)
		}
	}

	sched := scheduler.New(a.config.Schedule.Interval, func(runCtx context.Context) error {
		_, err := a.RunOnce(runCtx)
		return err
	}, a.logger)

	return sched.Run(ctx)
}

// Logger exposes the application logger for command-line entry points.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Manager exposes the operations manager, mainly for run inspection.
func (a *Application) Manager() *operations.Manager {
	return a.manager
}

// Shutdown flushes telemetry and releases the log file. Call it once the
// pipeline is no longer running.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}
