package operations

import (
	"sync"
	"time"
)

// RunStatusValue represents the overall run status enum
type RunStatusValue string

const (
	RunStatusPending   RunStatusValue = "pending"
	RunStatusRunning   RunStatusValue = "running"
	RunStatusCompleted RunStatusValue = "completed"
	RunStatusFailed    RunStatusValue = "failed"
	RunStatusCancelled RunStatusValue = "cancelled"
)

// RunState represents the complete state of a pipeline run
type RunState struct {
	mu sync.RWMutex

	// Basic run information
	ID        string         `json:"id"`
	RunDate   time.Time      `json:"run_date"`
	Status    RunStatusValue `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`

	// Stage states keyed by stage ID
	Stages map[string]*StageState `json:"stages"`

	// Run context for passing data between stages
	Context map[string]interface{} `json:"-"`

	// Error if the run failed
	Error error `json:"-"`
}

// NewRunState creates a new run state
func NewRunState(id string, runDate time.Time) *RunState {
	return &RunState{
		ID:        id,
		RunDate:   runDate,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Stages:    make(map[string]*StageState),
		Context:   make(map[string]interface{}),
	}
}

// Start marks the run as running
func (p *RunState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = RunStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *RunState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (p *RunState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *RunState) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = RunStatusCancelled
}

// GetStage returns the state of a specific stage
func (p *RunState) GetStage(stageID string) *StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Stages[stageID]
}

// SetStage updates the state of a specific stage
func (p *RunState) SetStage(stageID string, state *StageState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stages[stageID] = state
}

// GetContext retrieves a value from the run context
func (p *RunState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the run context
func (p *RunState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// Duration returns the duration of the run
func (p *RunState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// GetActiveStages returns all currently active stages
func (p *RunState) GetActiveStages() []*StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var active []*StageState
	for _, stage := range p.Stages {
		if stage.Status == StageStatusActive {
			active = append(active, stage)
		}
	}
	return active
}

// GetCompletedStages returns all completed stages
func (p *RunState) GetCompletedStages() []*StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var completed []*StageState
	for _, stage := range p.Stages {
		if stage.Status == StageStatusCompleted {
			completed = append(completed, stage)
		}
	}
	return completed
}

// GetFailedStages returns all failed stages
func (p *RunState) GetFailedStages() []*StageState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var failed []*StageState
	for _, stage := range p.Stages {
		if stage.Status == StageStatusFailed {
			failed = append(failed, stage)
		}
	}
	return failed
}

// IsComplete returns true if all stages are completed or skipped
func (p *RunState) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, stage := range p.Stages {
		if stage.Status == StageStatusPending || stage.Status == StageStatusActive {
			return false
		}
	}
	return true
}

// HasFailures returns true if any stage has failed
func (p *RunState) HasFailures() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, stage := range p.Stages {
		if stage.Status == StageStatusFailed {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the run state. Stage states and context
// entries are copied; context values themselves are shared.
func (p *RunState) Clone() *RunState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := &RunState{
		ID:        p.ID,
		RunDate:   p.RunDate,
		Status:    p.Status,
		StartTime: p.StartTime,
		Stages:    make(map[string]*StageState),
		Context:   make(map[string]interface{}),
		Error:     p.Error,
	}

	if p.EndTime != nil {
		endTime := *p.EndTime
		clone.EndTime = &endTime
	}

	for k, v := range p.Stages {
		v.mu.RLock()
		stageCopy := &StageState{
			ID:        v.ID,
			Name:      v.Name,
			Status:    v.Status,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Progress:  v.Progress,
			Message:   v.Message,
			Error:     v.Error,
			Metadata:  make(map[string]interface{}),
		}
		for mk, mv := range v.Metadata {
			stageCopy.Metadata[mk] = mv
		}
		v.mu.RUnlock()
		clone.Stages[k] = stageCopy
	}

	for k, v := range p.Context {
		clone.Context[k] = v
	}

	return clone
}
