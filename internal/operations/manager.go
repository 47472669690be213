package operations

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"retailcli/internal/infrastructure"
	"retailcli/internal/lake"
)

// Manager orchestrates pipeline run execution. Stages execute sequentially
// in dependency order; when one fails, its dependents are skipped and the
// run fails.
type Manager struct {
	registry *Registry
	config   *Config
	sink     ProgressSink
	store    *lake.Store
	tracer   *PipelineTracer

	// Active runs
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewManager creates a new run manager. The store may be nil, in which case
// no run manifest is persisted; a nil sink discards progress events.
func NewManager(store *lake.Store, registry *Registry, config *Config, sink ProgressSink) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Manager{
		registry: registry,
		config:   config,
		sink:     sink,
		store:    store,
		runs:     make(map[string]*RunState),
	}
}

// RegisterStage registers a stage with the manager
func (m *Manager) RegisterStage(stage Stage) error {
	return m.registry.Register(stage)
}

// SetConfig updates the run configuration
func (m *Manager) SetConfig(config *Config) {
	if config != nil {
		m.config = config
	}
}

// SetTracer attaches OpenTelemetry instrumentation to run execution
func (m *Manager) SetTracer(tracer *PipelineTracer) {
	m.tracer = tracer
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs a pipeline with the given request
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.ID == "" {
		req.ID = infrastructure.GenerateRunID()
	}
	ctx = infrastructure.WithRunID(ctx, req.ID)

	runDate, err := resolveRunDate(req.RunDate)
	if err != nil {
		m.logRunError(ctx, req.ID, err)
		return nil, NewValidationError("", fmt.Sprintf("invalid run date %q: %v", req.RunDate, err))
	}

	state := NewRunState(req.ID, runDate)
	if m.store != nil {
		state.SetContext(ContextKeyDataDir, m.store.Root())
	}
	for k, v := range req.Parameters {
		state.SetContext(k, v)
	}

	m.storeRun(state)
	defer m.removeRun(req.ID)

	// Determine which stages to run
	var stages []Stage
	if req.Stage != "" {
		requested, err := m.registry.Get(req.Stage)
		if err != nil {
			m.logRunError(ctx, req.ID, err)
			state.Fail(err)
			return m.createResponse(state), err
		}
		stages = []Stage{requested}

		slog.InfoContext(ctx, "executing_single_stage",
			slog.String("stage", req.Stage),
			slog.String("run_id", req.ID))
	} else {
		stages, err = m.registry.GetDependencyOrder()
		if err != nil {
			err = fmt.Errorf("failed to get dependency order: %w", err)
			m.logRunError(ctx, req.ID, err)
			state.Fail(err)
			return m.createResponse(state), err
		}

		slog.InfoContext(ctx, "executing_full_pipeline",
			slog.Int("stage_count", len(stages)),
			slog.String("run_id", req.ID))
	}

	stageIDs := make([]string, len(stages))
	for i, stage := range stages {
		state.SetStage(stage.ID(), NewStageState(stage.ID(), stage.Name()))
		stageIDs[i] = stage.ID()
	}

	// The manifest is the on-disk ledger of what this run produced; it is
	// rewritten after every stage transition.
	var manifest *lake.RunManifest
	if m.store != nil {
		manifest = lake.NewRunManifest(req.ID, runDate.Format("2006-01-02"), len(stages))
		manifest.MarkRunning()
		state.SetContext(ContextKeyManifest, manifest)
		m.saveManifest(ctx, manifest)
	}

	if m.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancel()
	}

	m.logRunStart(ctx, req.ID, req)
	state.Start()
	m.sink.RunStarted(ctx, req.ID, stageIDs)

	var runCtx context.Context = ctx
	var span traceSpan
	if m.tracer != nil {
		runCtx, span = m.tracer.TraceRunExecution(ctx, req.ID, req)
	}

	execErr := m.executeSequential(runCtx, state, stages, manifest)

	if execErr != nil {
		state.Fail(execErr)
		m.sink.RunFailed(ctx, req.ID, execErr)
		if m.tracer != nil {
			m.tracer.RecordRunError(runCtx, req.ID, execErr)
		}
	} else {
		state.Complete()
		m.sink.RunCompleted(ctx, req.ID, state.Duration())
	}

	if manifest != nil {
		manifest.MarkCompleted()
		m.saveManifest(ctx, manifest)
	}

	if m.tracer != nil {
		m.tracer.RecordRunCompletion(runCtx, span, req.ID, state.Duration(), execErr == nil, execErr)
	}
	m.logRunComplete(ctx, req.ID, state.Duration(), string(state.Status))

	return m.createResponse(state), execErr
}

// executeSequential executes stages one by one in dependency order
func (m *Manager) executeSequential(ctx context.Context, state *RunState, stages []Stage, manifest *lake.RunManifest) error {
	for i, stage := range stages {
		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "run_cancelled",
				slog.String("run_id", state.ID),
				slog.String("stage", stage.ID()))
			return NewCancellationError(stage.ID())
		default:
		}

		// Skipped by an earlier failure
		stageState := state.GetStage(stage.ID())
		if stageState != nil && stageState.Status == StageStatusSkipped {
			slog.InfoContext(ctx, "stage_already_skipped",
				slog.String("run_id", state.ID),
				slog.String("stage", stage.ID()),
				slog.Int("stage_number", i+1),
				slog.Int("total_stages", len(stages)))
			continue
		}

		slog.InfoContext(ctx, "executing_stage",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(stages)))

		if err := m.executeStage(ctx, state, stage, manifest); err != nil {
			m.logStageError(ctx, state.ID, stage.ID(), err)
			if !m.config.ContinueOnError {
				m.skipDependentStages(ctx, state, stages, stage.ID())
				return err
			}
			slog.WarnContext(ctx, "stage_failed_continuing",
				slog.String("run_id", state.ID),
				slog.String("stage", stage.ID()),
				slog.String("error", err.Error()))
		}
	}

	slog.InfoContext(ctx, "all_stages_finished",
		slog.String("run_id", state.ID))

	if state.HasFailures() {
		failed := state.GetFailedStages()
		return WrapError(failed[0].Error, failed[0].ID, "run finished with failures")
	}
	return nil
}

// executeStage executes a single stage with retry logic. The stage timeout
// spans all attempts.
func (m *Manager) executeStage(ctx context.Context, state *RunState, stage Stage, manifest *lake.RunManifest) error {
	m.logStageStart(ctx, state.ID, stage.ID())
	stageState := state.GetStage(stage.ID())
	if stageState == nil {
		return NewFatalError(fmt.Sprintf("stage state not found for %s", stage.ID()), nil)
	}

	if err := m.checkDependencies(state, stage); err != nil {
		stageState.Skip(fmt.Sprintf("dependencies not met: %v", err))
		m.sink.StageSkipped(ctx, state.ID, stage.ID(), stageState.Message)
		return NewDependencyError(stage.ID(), "", err.Error())
	}

	if err := stage.Validate(state); err != nil {
		stageState.Skip(fmt.Sprintf("validation failed: %v", err))
		m.sink.StageSkipped(ctx, state.ID, stage.ID(), stageState.Message)
		return NewValidationError(stage.ID(), err.Error())
	}

	timeout := m.config.GetStageTimeout(stage.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if manifest != nil {
		manifest.RecordStageStart(stage.ID(), stage.Name())
		m.saveManifest(ctx, manifest)
	}

	retry := m.config.Retry
	var lastErr error

	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		stageState.Start()
		m.sink.StageStarted(ctx, state.ID, stage.ID())

		var execCtx context.Context = stageCtx
		var span traceSpan
		if m.tracer != nil {
			execCtx, span = m.tracer.TraceStageExecution(stageCtx, state.ID, stage.ID(), attempt)
		}

		startTime := time.Now()
		err := stage.Execute(execCtx, state)
		duration := time.Since(startTime)

		if m.tracer != nil {
			m.tracer.RecordStageCompletion(execCtx, span, state.ID, stage.ID(), duration, err == nil)
		}

		if err == nil {
			m.logStageComplete(ctx, state.ID, stage.ID(), duration)
			stageState.Complete()
			m.sink.StageCompleted(ctx, state.ID, stage.ID(), duration)
			if manifest != nil {
				manifest.RecordStageCompletion(stage.ID(), stageOutputs(stageState), stageState.MetadataCopy())
				m.saveManifest(ctx, manifest)
			}
			return nil
		}

		slog.ErrorContext(ctx, "stage_execution_failed",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Duration("duration", duration),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		lastErr = err

		// Only transient ingestion I/O failures are worth another attempt
		if !IsRetryable(err) || attempt >= retry.MaxAttempts {
			break
		}

		delay := calculateRetryDelay(attempt, retry)
		slog.WarnContext(ctx, "stage_retry",
			slog.String("run_id", state.ID),
			slog.String("stage", stage.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retry.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		m.sink.StageProgress(ctx, state.ID, stage.ID(), stageState.Progress,
			fmt.Sprintf("retrying after attempt %d: %v", attempt, err))

		select {
		case <-time.After(delay):
		case <-stageCtx.Done():
			timeoutErr := NewTimeoutError(stage.ID(), timeout.String())
			stageState.Fail(timeoutErr)
			m.sink.StageFailed(ctx, state.ID, stage.ID(), timeoutErr)
			if manifest != nil {
				manifest.RecordStageFailure(stage.ID(), timeoutErr)
				m.saveManifest(ctx, manifest)
			}
			return timeoutErr
		}
	}

	stageState.Fail(lastErr)
	m.sink.StageFailed(ctx, state.ID, stage.ID(), lastErr)
	if manifest != nil {
		manifest.RecordStageFailure(stage.ID(), lastErr)
		m.saveManifest(ctx, manifest)
	}
	return WrapError(lastErr, stage.ID(), "stage execution failed")
}

// skipDependentStages marks all stages that depend on the failed stage as
// skipped, recursively
func (m *Manager) skipDependentStages(ctx context.Context, state *RunState, stages []Stage, failedStageID string) {
	for _, stage := range stages {
		for _, dep := range stage.Dependencies() {
			if dep == failedStageID {
				stageState := state.GetStage(stage.ID())
				if stageState != nil && stageState.Status == StageStatusPending {
					reason := fmt.Sprintf("dependency %s failed", failedStageID)
					stageState.Skip(reason)
					m.sink.StageSkipped(ctx, state.ID, stage.ID(), reason)
					m.skipDependentStages(ctx, state, stages, stage.ID())
				}
				break
			}
		}
	}
}

// checkDependencies verifies that every dependency present in this run has
// completed. Dependencies absent from the run were satisfied by an earlier
// run; their outputs are read back from the lake.
func (m *Manager) checkDependencies(state *RunState, stage Stage) error {
	for _, dep := range stage.Dependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			continue
		}
		if depState.Status != StageStatusCompleted {
			return fmt.Errorf("dependency %s not completed (status: %s)", dep, depState.Status)
		}
	}
	return nil
}

// calculateRetryDelay returns the backoff before the next attempt
func calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	delay := time.Duration(backoff)
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if delay < 0 {
		delay = config.MaxDelay
	}
	return delay
}

// stageOutputs pulls the output file list a stage recorded in its metadata
func stageOutputs(st *StageState) []string {
	val, ok := st.GetMetadata(MetadataKeyOutputs)
	if !ok {
		return nil
	}
	outs, _ := val.([]string)
	return outs
}

// resolveRunDate parses the requested run date, defaulting to today in UTC
func resolveRunDate(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", raw)
}

// saveManifest persists the manifest, logging instead of failing the run
// when the write does not succeed
func (m *Manager) saveManifest(ctx context.Context, manifest *lake.RunManifest) {
	if err := manifest.Save(m.store); err != nil {
		slog.ErrorContext(ctx, "manifest_save_failed",
			slog.String("run_id", manifest.RunID),
			slog.String("error", err.Error()))
	}
}

// createResponse creates a run response from state
func (m *Manager) createResponse(state *RunState) *RunResponse {
	resp := &RunResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Stages:   state.Stages,
	}

	if state.Error != nil {
		resp.Error = state.Error.Error()
	}

	return resp
}

// GetRun retrieves the state of an active run
func (m *Manager) GetRun(id string) (*RunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.runs[id]
	if !exists {
		return nil, ErrRunNotFound
	}

	return state.Clone(), nil
}

// ListRuns returns all active runs
func (m *Manager) ListRuns() []*RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*RunState, 0, len(m.runs))
	for _, state := range m.runs {
		runs = append(runs, state.Clone())
	}

	return runs
}

// CancelRun cancels an active run
func (m *Manager) CancelRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.runs[id]
	if !exists {
		return ErrRunNotFound
	}

	state.Cancel()
	return nil
}

// storeRun stores a run state
func (m *Manager) storeRun(state *RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.ID] = state
}

// removeRun removes a run state
func (m *Manager) removeRun(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, id)
}
